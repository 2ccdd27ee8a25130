package fetch

import (
	"context"
	"fmt"

	"github.com/ppiankov/phishlens/internal/logger"
	"github.com/ppiankov/phishlens/internal/model"
	"go.uber.org/zap"
)

// FallbackFetcher tries the primary strategy and escalates to the fallback
// only when the primary result is insufficient.
type FallbackFetcher struct {
	primary  Fetcher
	fallback Fetcher
	logger   *zap.Logger
}

// NewFallbackFetcher composes two strategies; a nil fallback disables escalation
func NewFallbackFetcher(primary, fallback Fetcher, log *zap.Logger) *FallbackFetcher {
	return &FallbackFetcher{
		primary:  primary,
		fallback: fallback,
		logger:   logger.OrNop(log),
	}
}

// New builds the configured fetch chain: plain HTTP, then rendering when enabled
func New(cfg *model.Config, log *zap.Logger) Fetcher {
	primary := NewHTTPFetcher(cfg.HTTP, log)
	var fallback Fetcher
	if cfg.Render.Enabled {
		fallback = NewRenderFetcher(cfg.Render, primary.userAgent, log)
	}
	return NewFallbackFetcher(primary, fallback, log)
}

// Fetch runs the primary strategy and, when needed, the fallback.
// Policy refusals are never escalated. With no fallback a gated document
// is still returned so extraction can use what was parsed.
func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	first := f.primary.Fetch(ctx, rawURL)
	record(model.StrategyHTTP, first)

	if sufficient(first) {
		return first
	}
	if first.Unavailable != nil && first.Unavailable.Blocked {
		return first
	}
	if f.fallback == nil {
		return first
	}

	f.logger.Debug("escalating to rendering fallback",
		zap.String("url", rawURL), zap.String("reason", insufficiency(first)))

	second := f.fallback.Fetch(ctx, rawURL)
	record(model.StrategyRender, second)

	if second.Available() {
		return second
	}

	reason := fmt.Sprintf("%s; %s", insufficiency(first), second.Reason())
	return model.UnavailableResult(reason, model.StrategyHTTP, model.StrategyRender)
}

// insufficiency describes why a primary result could not be used as is
func insufficiency(r model.FetchResult) string {
	if r.Available() {
		return "gated: " + r.Document.GateReason
	}
	return r.Reason()
}
