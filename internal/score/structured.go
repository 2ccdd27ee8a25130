package score

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/features"
	"github.com/ppiankov/phishlens/internal/model"
	"gopkg.in/yaml.v3"
)

// StructuredScorer maps a schema-aligned feature vector to a phishing probability
type StructuredScorer interface {
	// Name identifies the provider in sub-scores and logs
	Name() string

	// Schema is the ordered feature list the scorer was trained on
	Schema() features.Schema

	// Score returns a probability in [0,1]
	Score(ctx context.Context, vec model.FeatureVector) (float64, error)
}

// NewStructuredScorer builds the configured structured scorer
func NewStructuredScorer(cfg model.StructuredConfig) (StructuredScorer, error) {
	switch cfg.Provider {
	case "", "linear":
		if cfg.ModelPath == "" {
			return DefaultLinearModel()
		}
		return LoadLinearModel(cfg.ModelPath)
	case "http":
		schema := extract.DefaultSchema()
		if cfg.SchemaPath != "" {
			var err error
			if schema, err = features.LoadSchema(cfg.SchemaPath); err != nil {
				return nil, err
			}
		}
		return NewRemoteScorer(cfg.Endpoint, schema, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown structured provider: %s", cfg.Provider)
	}
}

//go:embed default_model.yaml
var defaultModelYAML []byte

// LinearModel is a logistic regression over a fixed feature schema.
// It is CPU-only and never blocks.
type LinearModel struct {
	SchemaVersion string             `yaml:"schema_version"`
	Features      []string           `yaml:"features"`
	Intercept     float64            `yaml:"intercept"`
	Coefficients  map[string]float64 `yaml:"coefficients"`
}

// DefaultLinearModel returns the built-in baseline model
func DefaultLinearModel() (*LinearModel, error) {
	return parseLinearModel(defaultModelYAML, "built-in")
}

// LoadLinearModel reads a model file; ${VAR:-default} references are expanded
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return parseLinearModel(features.ExpandEnv(data), path)
}

func parseLinearModel(data []byte, origin string) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", origin, err)
	}
	if err := m.Schema().Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", origin, err)
	}

	known := make(map[string]bool, len(m.Features))
	for _, f := range m.Features {
		known[f] = true
	}
	for name, c := range m.Coefficients {
		if !known[name] {
			return nil, fmt.Errorf("model %s: coefficient for unknown feature %q", origin, name)
		}
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("model %s: coefficient %q is not finite", origin, name)
		}
	}
	return &m, nil
}

// Name returns the provider name
func (m *LinearModel) Name() string { return "linear" }

// Schema returns the model's feature schema
func (m *LinearModel) Schema() features.Schema {
	return features.Schema{Version: m.SchemaVersion, Features: m.Features}
}

// Score applies the logistic function to intercept + Σ coefficient·value
func (m *LinearModel) Score(_ context.Context, vec model.FeatureVector) (float64, error) {
	if vec.Len() != len(m.Features) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", vec.Len(), len(m.Features))
	}

	z := m.Intercept
	for i, name := range vec.Names {
		z += m.Coefficients[name] * vec.Values[i]
	}

	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("linear model produced NaN")
	}
	return p, nil
}

// RemoteScorer posts the feature vector to an HTTP model server
type RemoteScorer struct {
	endpoint   string
	schema     features.Schema
	httpClient *http.Client
}

// NewRemoteScorer creates a scorer for endpoint expecting schema
func NewRemoteScorer(endpoint string, schema features.Schema, timeout time.Duration) *RemoteScorer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteScorer{
		endpoint:   endpoint,
		schema:     schema,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remoteScoreRequest struct {
	SchemaVersion string    `json:"schema_version"`
	Features      []string  `json:"features"`
	Values        []float64 `json:"values"`
}

type remoteScoreResponse struct {
	Probability *float64 `json:"probability"`
}

// Name returns the provider name
func (r *RemoteScorer) Name() string { return "http" }

// Schema returns the schema the remote model expects
func (r *RemoteScorer) Schema() features.Schema { return r.schema }

// Score sends the vector and returns the remote probability, clamped to [0,1]
func (r *RemoteScorer) Score(ctx context.Context, vec model.FeatureVector) (float64, error) {
	body, err := json.Marshal(remoteScoreRequest{
		SchemaVersion: vec.SchemaVersion,
		Features:      vec.Names,
		Values:        vec.Values,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("structured scorer request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("structured scorer error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out remoteScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if out.Probability == nil {
		return 0, fmt.Errorf("structured scorer response has no probability")
	}
	if math.IsNaN(*out.Probability) {
		return 0, fmt.Errorf("structured scorer returned NaN")
	}
	return clamp(*out.Probability), nil
}
