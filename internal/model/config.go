package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Degradation policies applied when one sub-scorer cannot produce a value
const (
	OnFailureRenormalize = "renormalize" // Surviving score takes the full weight
	OnFailureFail        = "fail"        // Any scorer failure fails the request
)

// DefaultUserAgent is a realistic desktop browser identity
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config is the complete phishlens configuration.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Render       RenderConfig      `yaml:"render" mapstructure:"render"`
	Pipeline     PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Fusion       FusionConfig      `yaml:"fusion" mapstructure:"fusion"`
	Semantic     SemanticConfig    `yaml:"semantic" mapstructure:"semantic"`
	Structured   StructuredConfig  `yaml:"structured" mapstructure:"structured"`
	Extract      ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging      LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures the primary (plain HTTP) fetch strategy
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// RenderConfig configures the headless browser fallback
type RenderConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	IdleWindow time.Duration `yaml:"idle_window" mapstructure:"idle_window"` // Quiet period that counts as network idle
	ChromePath string        `yaml:"chrome_path,omitempty" mapstructure:"chrome_path"`
}

// PipelineConfig bounds a single classification request
type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	FetchBudget    time.Duration `yaml:"fetch_budget" mapstructure:"fetch_budget"` // Share of the request spent fetching
}

// FusionConfig is the score fusion policy
type FusionConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	StructuredWeight float64 `yaml:"structured_weight" mapstructure:"structured_weight"`
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`   // Phishing iff final score > threshold
	OnFailure        string  `yaml:"on_failure" mapstructure:"on_failure"` // renormalize or fail
}

// Validate checks that weights sum to 1 and the policy is known
func (f FusionConfig) Validate() error {
	if !unitInterval(f.SemanticWeight) || !unitInterval(f.StructuredWeight) {
		return fmt.Errorf("fusion weights must be in [0,1], got semantic=%v structured=%v", f.SemanticWeight, f.StructuredWeight)
	}
	if math.Abs(f.SemanticWeight+f.StructuredWeight-1) > 1e-9 {
		return fmt.Errorf("fusion weights must sum to 1, got %v", f.SemanticWeight+f.StructuredWeight)
	}
	if !unitInterval(f.Threshold) {
		return fmt.Errorf("fusion threshold must be in [0,1], got %v", f.Threshold)
	}
	switch f.OnFailure {
	case OnFailureRenormalize, OnFailureFail:
	default:
		return fmt.Errorf("unknown fusion on_failure policy %q (supported: %s, %s)", f.OnFailure, OnFailureRenormalize, OnFailureFail)
	}
	return nil
}

// unitInterval reports whether x is in [0,1]; NaN is not
func unitInterval(x float64) bool {
	return x >= 0 && x <= 1
}

// SemanticConfig configures the text-classifier scorer
type SemanticConfig struct {
	Provider      string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, http, "" (disabled)
	Model         string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey        string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SnippetChars  int           `yaml:"snippet_chars" mapstructure:"snippet_chars"`
	MaxInputChars int           `yaml:"max_input_chars" mapstructure:"max_input_chars"`
}

// StructuredConfig configures the feature-vector scorer
type StructuredConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"`                 // linear or http
	ModelPath  string        `yaml:"model_path,omitempty" mapstructure:"model_path"`   // Linear model file, built-in baseline if empty
	SchemaPath string        `yaml:"schema_path,omitempty" mapstructure:"schema_path"` // Schema for the http provider
	Endpoint   string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"`       // Remote scorer URL
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ExtractConfig tunes the feature extractors
type ExtractConfig struct {
	Brands []string    `yaml:"brands" mapstructure:"brands"`
	Whois  WhoisConfig `yaml:"whois" mapstructure:"whois"`
}

// WhoisConfig enables registration-age features
type WhoisConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	NewDays int           `yaml:"new_days" mapstructure:"new_days"` // Younger than this counts as a new domain
}

// CacheConfig configures the verdict cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig is the per-domain limit used by batch classification
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig selects the zap preset and level
type LoggingConfig struct {
	Env   string `yaml:"env" mapstructure:"env"`     // prod (JSON) or dev (console)
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// OutputConfig controls report rendering
type OutputConfig struct {
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultBrands is the built-in brand vocabulary for EmbeddedBrandName
var DefaultBrands = []string{
	"paypal", "amazon", "facebook", "google", "microsoft", "apple",
	"bankofamerica", "chase", "wellsfargo", "linkedin", "ebay", "twitter",
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      5 * time.Second,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: 2_000_000,
		},
		Render: RenderConfig{
			Enabled:    true,
			Timeout:    10 * time.Second,
			IdleWindow: 500 * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			RequestTimeout: 30 * time.Second,
			FetchBudget:    16 * time.Second,
		},
		Fusion: FusionConfig{
			SemanticWeight:   0.6,
			StructuredWeight: 0.4,
			Threshold:        0.5,
			OnFailure:        OnFailureRenormalize,
		},
		Semantic: SemanticConfig{
			Provider:      "",
			Timeout:       10 * time.Second,
			SnippetChars:  500,
			MaxInputChars: 4000,
		},
		Structured: StructuredConfig{
			Provider: "linear",
			Timeout:  5 * time.Second,
		},
		Extract: ExtractConfig{
			Brands: append([]string(nil), DefaultBrands...),
			Whois: WhoisConfig{
				Enabled: false,
				Timeout: 5 * time.Second,
				NewDays: 180,
			},
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Env:   "dev",
			Level: "warn",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if err := c.Fusion.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	if c.Render.Enabled && c.Render.Timeout <= 0 {
		errs = append(errs, errors.New("render.timeout must be positive when rendering is enabled"))
	}
	if c.Pipeline.RequestTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.request_timeout must be positive"))
	}

	switch strings.ToLower(c.Structured.Provider) {
	case "linear", "":
	case "http":
		if c.Structured.Endpoint == "" {
			errs = append(errs, errors.New("structured.endpoint is required for the http provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown structured provider %q (supported: linear, http)", c.Structured.Provider))
	}

	switch strings.ToLower(c.Semantic.Provider) {
	case "", "openai", "anthropic", "claude", "ollama":
	case "http":
		if c.Semantic.BaseURL == "" {
			errs = append(errs, errors.New("semantic.base_url is required for the http provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown semantic provider %q (supported: openai, anthropic, ollama, http)", c.Semantic.Provider))
	}

	return errors.Join(errs...)
}
