package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProvider calls a remote text classifier.
// It POSTs {"text": ...} and expects {"probability": p}.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	config     Config
}

type httpClassifyRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// NewHTTPProvider creates a provider for the endpoint in config.BaseURL
func NewHTTPProvider(config Config) (*HTTPProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("http semantic provider requires base_url")
	}
	return &HTTPProvider{
		endpoint:   strings.TrimSpace(config.BaseURL),
		apiKey:     config.APIKey,
		httpClient: newHTTPClient(config),
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return "http"
}

// IsAvailable reports whether the endpoint answers at all
func (p *HTTPProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Classify sends the composed page text to the remote classifier
func (p *HTTPProvider) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	if req.MaxInputChars == 0 {
		req.MaxInputChars = p.config.MaxInputChars
	}
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	body, err := json.Marshal(httpClassifyRequest{Text: BuildInput(req), Model: model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, truncate(string(respBody), 200))
	}

	raw := strings.TrimSpace(string(respBody))
	prob, err := ParseProbability(raw)
	if err != nil {
		return nil, err
	}

	return &ClassifyResponse{
		Probability: prob,
		Raw:         raw,
		Model:       model,
	}, nil
}
