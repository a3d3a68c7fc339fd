package httpapi

import (
	"net/http"

	"github.com/linkscout/citefinder/internal/config"
)

// NewServer builds the HTTP server for mux. The caller starts and stops it.
func NewServer(cfg config.ServerConfig, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * cfg.WriteTimeout,
	}
}
