package ranking

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var errUnsupportedURL = errors.New("unsupported url")

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid",
}

// NormalizeURL lower-cases scheme and host, drops the fragment and common
// tracking parameters. The path is left untouched so the link still resolves.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return "", errUnsupportedURL
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}

// Host returns the lowercase host of rawURL without port or a leading "www."
func Host(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", errUnsupportedURL
	}
	return host, nil
}

// RegistrableDomain is the eTLD+1 of host ("news.bbc.co.uk" -> "bbc.co.uk").
// Hosts that have none, such as IPs or bare suffixes, are returned as is.
func RegistrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// suffixLabels returns the labels of the public suffix of host
func suffixLabels(host string) []string {
	ps, _ := publicsuffix.PublicSuffix(host)
	return strings.Split(ps, ".")
}
