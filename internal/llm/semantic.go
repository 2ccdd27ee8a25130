package llm

import (
	"context"
	"time"

	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/model"
)

// SemanticScorer turns a provider into the semantic sub-score of a verdict.
// A scorer without a provider is disabled and reports Skipped.
type SemanticScorer struct {
	provider     Provider
	snippetChars int
	maxInput     int
}

// NewSemanticScorer builds the scorer for cfg; an empty provider disables it
func NewSemanticScorer(cfg model.SemanticConfig, httpCfg model.HTTPConfig) (*SemanticScorer, error) {
	provider, err := NewProvider(ConfigFromModel(cfg, httpCfg))
	if err != nil {
		return nil, err
	}
	return NewSemanticScorerWithProvider(provider, cfg.SnippetChars, cfg.MaxInputChars), nil
}

// NewSemanticScorerWithProvider wraps an existing provider
func NewSemanticScorerWithProvider(provider Provider, snippetChars, maxInputChars int) *SemanticScorer {
	if snippetChars <= 0 {
		snippetChars = extract.DefaultSnippetChars
	}
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	return &SemanticScorer{
		provider:     provider,
		snippetChars: snippetChars,
		maxInput:     maxInputChars,
	}
}

// IsEnabled reports whether a provider is configured
func (s *SemanticScorer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider, or "" when disabled
func (s *SemanticScorer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// Status names the provider for diagnostics, marking it unreachable when
// it does not answer an availability check
func (s *SemanticScorer) Status(ctx context.Context) string {
	if !s.IsEnabled() {
		return "disabled"
	}
	if !s.provider.IsAvailable(ctx) {
		return s.ProviderName() + " (unreachable)"
	}
	return s.ProviderName()
}

// Score classifies the URL and whatever page text was fetched.
// An unavailable page is still scored from the URL alone.
func (s *SemanticScorer) Score(ctx context.Context, rawURL string, result model.FetchResult) model.SubScore {
	if !s.IsEnabled() {
		return model.SkippedSubScore(model.SourceSemantic)
	}

	req := ClassifyRequest{URL: rawURL, MaxInputChars: s.maxInput}
	if doc := result.Document; doc != nil {
		req.Title = doc.Title
		req.Snippet = extract.Snippet(doc.Snippet, s.snippetChars)
	}

	start := time.Now()
	resp, err := s.provider.Classify(ctx, req)
	took := time.Since(start)
	if err != nil {
		return model.FailedSubScore(model.SourceSemantic, s.provider.Name(), err, took)
	}
	return model.NewSubScore(model.SourceSemantic, s.provider.Name(), resp.Probability, took)
}
