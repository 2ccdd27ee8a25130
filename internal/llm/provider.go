package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Provider defines the interface for semantic classifier backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Classify returns the probability that the page is phishing
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ClassifyRequest contains the input for semantic classification
type ClassifyRequest struct {
	// URL is the address being classified
	URL string

	// Title is the page title, empty when the page was unavailable
	Title string

	// Snippet is the leading visible text of the page
	Snippet string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxInputChars bounds the composed input; longer input is truncated
	MaxInputChars int
}

// ClassifyResponse contains the classifier output
type ClassifyResponse struct {
	// Probability that the page is phishing, in [0,1]
	Probability float64

	// Raw is the unparsed model reply
	Raw string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds semantic provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "http", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, remote classifier)
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// MaxInputChars bounds the text sent to the model
	MaxInputChars int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const (
	defaultTimeout       = 10 * time.Second
	defaultMaxInputChars = 4000
)

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "", // Disabled by default
		Timeout:       defaultTimeout,
		MaxInputChars: defaultMaxInputChars,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// systemPrompt frames the model as a binary classifier
const systemPrompt = "You are a security classifier that decides whether a web page is a phishing page. Reply with JSON only."

// BuildInput composes the classifier text: URL, title and snippet on separate
// lines, truncated to maxChars runes. Input is never rejected for length.
func BuildInput(req ClassifyRequest) string {
	text := req.URL + "\n" + req.Title + "\n" + req.Snippet
	limit := req.MaxInputChars
	if limit <= 0 {
		limit = defaultMaxInputChars
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// BuildPrompt constructs the classification prompt for chat-style models
func BuildPrompt(req ClassifyRequest) string {
	return fmt.Sprintf(`Classify the following web page as phishing or legitimate.

Phishing pages impersonate a trusted brand or service to collect credentials,
payment details or personal data. Judge from the URL, the title and the page text.

Respond with a single JSON object and nothing else:
{"phishing_probability": <number between 0 and 1>}

Page:
%s`, BuildInput(req))
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// ParseProbability extracts a probability from a model reply.
// It accepts {"phishing_probability": p}, {"probability": p}, optionally
// wrapped in a code fence, or a bare number. Out-of-range values are errors.
func ParseProbability(raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var p float64
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		p = v
	} else {
		var obj struct {
			PhishingProbability *float64 `json:"phishing_probability"`
			Probability         *float64 `json:"probability"`
		}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return 0, fmt.Errorf("unparseable classifier reply %q: %w", truncate(raw, 80), err)
		}
		switch {
		case obj.PhishingProbability != nil:
			p = *obj.PhishingProbability
		case obj.Probability != nil:
			p = *obj.Probability
		default:
			return 0, fmt.Errorf("classifier reply has no probability: %q", truncate(raw, 80))
		}
	}

	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("classifier probability out of range: %v", p)
	}
	return p, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
