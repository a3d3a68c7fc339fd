package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LLMConfig selects the completion provider used for extraction and reasons
type LLMConfig struct {
	Provider        string `mapstructure:"provider"` // openai | anthropic
	Model           string `mapstructure:"model"`    // empty selects the provider default
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
}

type EmbeddingsConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Model      string        `mapstructure:"model"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	MaxTextLen int           `mapstructure:"max_text_len"`
	RedisCache bool          `mapstructure:"redis_cache"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SearchConfig points at the Serper web search API
type SearchConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	KeyHeader  string `mapstructure:"key_header"`
	Country    string `mapstructure:"country"`
	Language   string `mapstructure:"language"`
	NumResults int    `mapstructure:"num_results"`
}

type PageRankConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type KeywordsConfig struct {
	MaxInputWords     int     `mapstructure:"max_input_words"`
	NumPhrases        int     `mapstructure:"num_phrases"`
	MinScore          int     `mapstructure:"min_score"`
	MaxPhrases        int     `mapstructure:"max_phrases"`
	SemanticThreshold float64 `mapstructure:"semantic_threshold"`
	SemanticFilter    bool    `mapstructure:"semantic_filter"`
}

// Weights are the per-signal scoring constants
type Weights struct {
	RankBase     float64 `mapstructure:"rank_base"`
	TLDHigh      float64 `mapstructure:"tld_high"`
	TLDMedium    float64 `mapstructure:"tld_medium"`
	AuthorityMax float64 `mapstructure:"authority_max"`
	Brand        float64 `mapstructure:"brand"`
	SemanticMax  float64 `mapstructure:"semantic_max"`
}

// MaxTopN is the largest number of options returned per phrase
const MaxTopN = 3

type RankingConfig struct {
	Weights        Weights `mapstructure:"weights"`
	TopN           int     `mapstructure:"top_n"`
	MaxResults     int     `mapstructure:"max_results"`
	SemanticSignal bool    `mapstructure:"semantic_signal"`
}

type PipelineConfig struct {
	MaxTextChars int      `mapstructure:"max_text_chars"`
	ExtraTerms   []string `mapstructure:"extra_terms"`
}

// TimeoutsConfig bounds each external call
type TimeoutsConfig struct {
	Extraction time.Duration `mapstructure:"extraction"`
	Search     time.Duration `mapstructure:"search"`
	PageRank   time.Duration `mapstructure:"pagerank"`
	Embedding  time.Duration `mapstructure:"embedding"`
	Reason     time.Duration `mapstructure:"reason"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Config is the full service configuration. It is read once at start and
// passed by value or pointer to constructors; nothing mutates it afterwards.
type Config struct {
	Server           ServerConfig     `mapstructure:"server"`
	Logging          LoggingConfig    `mapstructure:"logging"`
	LLM              LLMConfig        `mapstructure:"llm"`
	Embeddings       EmbeddingsConfig `mapstructure:"embeddings"`
	Redis            RedisConfig      `mapstructure:"redis"`
	Search           SearchConfig     `mapstructure:"search"`
	PageRank         PageRankConfig   `mapstructure:"pagerank"`
	Keywords         KeywordsConfig   `mapstructure:"keywords"`
	Ranking          RankingConfig    `mapstructure:"ranking"`
	Pipeline         PipelineConfig   `mapstructure:"pipeline"`
	Timeouts         TimeoutsConfig   `mapstructure:"timeouts"`
	Tracing          TracingConfig    `mapstructure:"tracing"`
	RateLimitsPath   string           `mapstructure:"rate_limits_path"`
	DomainPolicyPath string           `mapstructure:"domain_policy_path"`
}

// ConfigPath returns CONFIG_PATH or ./config/citefinder.yaml
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/citefinder.yaml"
}

// Load reads the YAML file at ConfigPath when present, then applies
// CITEFINDER_* environment overrides and the provider secrets.
func Load() (*Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile is Load with an explicit path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CITEFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("llm.openai_api_key", "CITEFINDER_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.anthropic_api_key", "CITEFINDER_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("search.api_key", "CITEFINDER_SEARCH_API_KEY", "SERPER_KEY")
	_ = v.BindEnv("pagerank.api_key", "CITEFINDER_PAGERANK_API_KEY", "OPENPAGERANK_KEY")
	_ = v.BindEnv("domain_policy_path", "CITEFINDER_DOMAIN_POLICY_PATH", "DOMAIN_POLICY_PATH")
	_ = v.BindEnv("logging.level", "CITEFINDER_LOGGING_LEVEL", "LOG_LEVEL")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.anthropic_api_key", "")

	v.SetDefault("embeddings.enabled", true)
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.cache_size", 2048)
	v.SetDefault("embeddings.cache_ttl", time.Hour)
	v.SetDefault("embeddings.max_text_len", 6000)
	v.SetDefault("embeddings.redis_cache", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("search.endpoint", "https://serper.p.rapidapi.com/search")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.key_header", "X-RapidAPI-Key")
	v.SetDefault("search.country", "us")
	v.SetDefault("search.language", "en")
	v.SetDefault("search.num_results", 10)

	v.SetDefault("pagerank.endpoint", "https://openpagerank.com/api/v1.0/getPageRank")
	v.SetDefault("pagerank.api_key", "")

	v.SetDefault("keywords.max_input_words", 350)
	v.SetDefault("keywords.num_phrases", 7)
	v.SetDefault("keywords.min_score", 3)
	v.SetDefault("keywords.max_phrases", 8)
	v.SetDefault("keywords.semantic_threshold", 0.22)
	v.SetDefault("keywords.semantic_filter", true)

	v.SetDefault("ranking.weights.rank_base", 100)
	v.SetDefault("ranking.weights.tld_high", 60)
	v.SetDefault("ranking.weights.tld_medium", 40)
	v.SetDefault("ranking.weights.authority_max", 50)
	v.SetDefault("ranking.weights.brand", 80)
	v.SetDefault("ranking.weights.semantic_max", 80)
	v.SetDefault("ranking.top_n", 3)
	v.SetDefault("ranking.max_results", 10)
	v.SetDefault("ranking.semantic_signal", true)

	v.SetDefault("pipeline.max_text_chars", 10000)
	v.SetDefault("pipeline.extra_terms", []string{})

	v.SetDefault("timeouts.extraction", 20*time.Second)
	v.SetDefault("timeouts.search", 10*time.Second)
	v.SetDefault("timeouts.pagerank", 5*time.Second)
	v.SetDefault("timeouts.embedding", 10*time.Second)
	v.SetDefault("timeouts.reason", 15*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "citefinder")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("rate_limits_path", "")
	v.SetDefault("domain_policy_path", "./config/domain_quality.yaml")
}

// Validate rejects values outside the ranges the pipeline supports
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider)
	}
	if c.Keywords.NumPhrases < 6 || c.Keywords.NumPhrases > 20 {
		return fmt.Errorf("keywords.num_phrases must be within 6-20, got %d", c.Keywords.NumPhrases)
	}
	if c.Keywords.MaxPhrases < 8 || c.Keywords.MaxPhrases > 10 {
		return fmt.Errorf("keywords.max_phrases must be within 8-10, got %d", c.Keywords.MaxPhrases)
	}
	if c.Keywords.MinScore < 1 || c.Keywords.MinScore > 5 {
		return fmt.Errorf("keywords.min_score must be within 1-5, got %d", c.Keywords.MinScore)
	}
	if c.Ranking.TopN < 1 || c.Ranking.TopN > MaxTopN {
		return fmt.Errorf("ranking.top_n must be within 1-%d, got %d", MaxTopN, c.Ranking.TopN)
	}
	if c.Pipeline.MaxTextChars <= 0 {
		return fmt.Errorf("pipeline.max_text_chars must be positive, got %d", c.Pipeline.MaxTextChars)
	}
	return nil
}
