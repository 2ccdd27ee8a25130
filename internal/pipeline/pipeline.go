// Package pipeline runs one URL through fetch, feature extraction, both
// scorers and fusion, and returns the resulting verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/phishlens/internal/cache"
	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/features"
	"github.com/ppiankov/phishlens/internal/fetch"
	"github.com/ppiankov/phishlens/internal/llm"
	"github.com/ppiankov/phishlens/internal/logger"
	"github.com/ppiankov/phishlens/internal/metrics"
	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/score"
)

const defaultRequestTimeout = 30 * time.Second

// Deps are the collaborators of a Classifier. Fetcher, Extractors,
// Structured and Fuser are required; Semantic and Cache are optional.
type Deps struct {
	Fetcher    fetch.Fetcher
	Extractors *extract.Registry
	Semantic   *llm.SemanticScorer
	Structured score.StructuredScorer
	Fuser      *score.Fuser
	Cache      *cache.VerdictCache
	Logger     *zap.Logger

	RequestTimeout time.Duration // Bounds the whole request
	FetchBudget    time.Duration // Bounds the fetch; zero means the remaining request budget
}

// Classifier produces verdicts. It is immutable after construction and safe
// for concurrent use.
type Classifier struct {
	fetcher    fetch.Fetcher
	extractors *extract.Registry
	schema     features.Schema
	semantic   *llm.SemanticScorer
	structured score.StructuredScorer
	fuser      *score.Fuser
	cache      *cache.VerdictCache
	logger     *zap.Logger

	requestTimeout time.Duration
	fetchBudget    time.Duration
}

// New builds a Classifier. The feature schema is the structured scorer's.
func New(d Deps) (*Classifier, error) {
	switch {
	case d.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case d.Extractors == nil:
		return nil, errors.New("pipeline: extractor registry is required")
	case d.Structured == nil:
		return nil, errors.New("pipeline: structured scorer is required")
	case d.Fuser == nil:
		return nil, errors.New("pipeline: fuser is required")
	}

	schema := d.Structured.Schema()
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %s schema: %w", d.Structured.Name(), err)
	}

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Classifier{
		fetcher:        d.Fetcher,
		extractors:     d.Extractors,
		schema:         schema,
		semantic:       d.Semantic,
		structured:     d.Structured,
		fuser:          d.Fuser,
		cache:          d.Cache,
		logger:         logger.OrNop(d.Logger),
		requestTimeout: timeout,
		fetchBudget:    d.FetchBudget,
	}, nil
}

// Schema returns the feature schema vectors are aligned to
func (c *Classifier) Schema() features.Schema {
	return c.schema
}

// SemanticStatus reports the semantic provider and whether it answers
func (c *Classifier) SemanticStatus(ctx context.Context) string {
	return c.semantic.Status(ctx)
}

// Classify fetches rawURL, extracts features, scores and fuses them.
// A page that cannot be fetched still yields a verdict; an error means no
// verdict could be formed at all (ErrNoScores, ErrScorerFailed or a
// feature collision).
func (c *Classifier) Classify(ctx context.Context, rawURL string) (*model.Verdict, error) {
	start := time.Now()

	if c.cache != nil {
		if v, ok := c.cache.Get(rawURL); ok {
			c.logger.Debug("verdict cache hit", zap.String("url", rawURL), zap.String("id", v.ID))
			return v, nil
		}
	}

	id := uuid.NewString()
	log := c.logger.With(zap.String("request_id", id), zap.String("url", rawURL))

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	ctx = logger.ContextWithLogger(ctx, log)

	result := c.fetch(ctx, rawURL)
	if !result.Available() {
		log.Info("page unavailable, using default page features", zap.String("reason", result.Reason()))
	}

	vec, err := features.Assemble(c.schema, c.extractors.Extract(ctx, rawURL, result)...)
	if err != nil {
		metrics.PipelineFailuresTotal.WithLabelValues("feature_collision").Inc()
		return nil, fmt.Errorf("assemble features: %w", err)
	}
	c.reportMismatch(log, vec.Mismatch)

	semantic, structured := c.score(ctx, rawURL, result, vec)
	for _, s := range []model.SubScore{semantic, structured} {
		if s.Failed() {
			metrics.ScorerFailuresTotal.WithLabelValues(string(s.Source), s.Provider).Inc()
			log.Warn("scorer failed", zap.String("source", string(s.Source)),
				zap.String("provider", s.Provider), zap.String("error", s.Error))
		}
	}

	fused, err := c.fuser.Fuse(semantic, structured)
	if err != nil {
		reason := "no_scores"
		if errors.Is(err, score.ErrScorerFailed) {
			reason = "scorer_failed"
		}
		metrics.PipelineFailuresTotal.WithLabelValues(reason).Inc()
		return nil, fmt.Errorf("fuse scores: %w", err)
	}

	verdict := &model.Verdict{
		ID:              id,
		URL:             rawURL,
		FinalScore:      fused.FinalScore,
		Label:           fused.Label,
		Mode:            fused.Mode,
		Degraded:        fused.Degraded,
		Contributing:    []model.SubScore{semantic, structured},
		Weights:         fused.Weights,
		Threshold:       fused.Threshold,
		Fetch:           result.Summarize(),
		Features:        vec,
		FeaturesAllZero: vec.AllZero,
		CreatedAt:       start.UTC(),
	}
	verdict.Signals = append(fetchSignals(result), fused.Signals...)
	verdict.Signals = append(verdict.Signals, featureSignals(vec)...)
	verdict.Duration = time.Since(start)

	metrics.VerdictsTotal.WithLabelValues(string(verdict.Label), string(verdict.Mode)).Inc()
	metrics.ClassifyDuration.WithLabelValues(string(verdict.Mode)).Observe(verdict.Duration.Seconds())

	log.Info("classified",
		zap.String("label", string(verdict.Label)),
		zap.Float64("score", verdict.FinalScore),
		zap.String("mode", string(verdict.Mode)),
		zap.Bool("degraded", verdict.Degraded),
		zap.Duration("took", verdict.Duration))

	if c.cache != nil && cacheable(verdict) {
		if err := c.cache.Put(verdict); err != nil {
			log.Warn("verdict cache write failed", zap.Error(err))
		}
	}

	return verdict, nil
}

// fetch runs the fetcher under min(fetch budget, remaining request budget)
func (c *Classifier) fetch(ctx context.Context, rawURL string) model.FetchResult {
	budget := c.fetchBudget
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); budget <= 0 || remaining < budget {
			budget = remaining
		}
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	return c.fetcher.Fetch(ctx, rawURL)
}

// score runs both scorers concurrently. Scorer errors become failed
// sub-scores, so the group itself never fails.
func (c *Classifier) score(ctx context.Context, rawURL string, result model.FetchResult, vec model.FeatureVector) (semantic, structured model.SubScore) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic = c.semantic.Score(gctx, rawURL, result)
		return nil
	})
	g.Go(func() error {
		structured = c.scoreStructured(gctx, vec)
		return nil
	})
	_ = g.Wait()
	return semantic, structured
}

func (c *Classifier) scoreStructured(ctx context.Context, vec model.FeatureVector) model.SubScore {
	start := time.Now()
	p, err := c.structured.Score(ctx, vec)
	took := time.Since(start)
	if err != nil {
		return model.FailedSubScore(model.SourceStructured, c.structured.Name(), err, took)
	}
	return model.NewSubScore(model.SourceStructured, c.structured.Name(), p, took)
}

func (c *Classifier) reportMismatch(log *zap.Logger, m model.SchemaMismatch) {
	if m.Empty() {
		return
	}
	for _, name := range m.Missing {
		metrics.SchemaMismatchTotal.WithLabelValues("missing", name).Inc()
	}
	for _, name := range m.Dropped {
		metrics.SchemaMismatchTotal.WithLabelValues("dropped", name).Inc()
	}
	log.Debug("feature schema mismatch",
		zap.String("schema", c.schema.Version),
		zap.Strings("missing", m.Missing),
		zap.Strings("dropped", m.Dropped))
}

func fetchSignals(result model.FetchResult) []model.Signal {
	if result.Unavailable != nil {
		return []model.Signal{{
			Type:        model.SignalFetchUnavailable,
			Severity:    model.SeverityWarning,
			Description: "Page could not be retrieved; content features use defaults",
			Data: map[string]interface{}{
				"reason":   result.Unavailable.Reason,
				"attempts": result.Unavailable.Attempts,
				"blocked":  result.Unavailable.Blocked,
			},
		}}
	}

	doc := result.Document
	if doc == nil {
		return nil
	}
	var signals []model.Signal
	if code := doc.Meta.StatusCode; code != 0 && (code < 200 || code >= 300) {
		signals = append(signals, model.Signal{
			Type:        model.SignalErrorStatus,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("Page was served with HTTP status %d", code),
			Data:        map[string]interface{}{"status_code": code},
		})
	}
	if doc.Gated {
		signals = append(signals, model.Signal{
			Type:        model.SignalScriptGated,
			Severity:    model.SeverityWarning,
			Description: "Only a script-gated shell page was retrieved",
			Data: map[string]interface{}{
				"reason":   doc.GateReason,
				"strategy": doc.Strategy,
			},
		})
	}
	return signals
}

func featureSignals(vec model.FeatureVector) []model.Signal {
	var signals []model.Signal
	if vec.AllZero {
		signals = append(signals, model.Signal{
			Type:        model.SignalAllZeroFeatures,
			Severity:    model.SeverityWarning,
			Description: "Structured score was computed from an all-zero feature vector",
			Data:        map[string]interface{}{"schema": vec.SchemaVersion, "width": vec.Len()},
		})
	}
	if !vec.Mismatch.Empty() {
		signals = append(signals, model.Signal{
			Type:        model.SignalSchemaMismatch,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d schema features missing, %d extracted features dropped", len(vec.Mismatch.Missing), len(vec.Mismatch.Dropped)),
			Data: map[string]interface{}{
				"schema":  vec.SchemaVersion,
				"missing": vec.Mismatch.Missing,
				"dropped": vec.Mismatch.Dropped,
			},
		})
	}
	return signals
}

// cacheable keeps transient failures out of the cache: a verdict formed
// without the page or without one of the scorers is recomputed next time
func cacheable(v *model.Verdict) bool {
	return v.Fetch.Available && !v.Fetch.Gated && !v.Degraded
}
