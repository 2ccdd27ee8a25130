package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"go.uber.org/zap"

	"github.com/ppiankov/phishlens/internal/cache"
	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/fetch"
	"github.com/ppiankov/phishlens/internal/llm"
	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/score"
)

// FromConfig builds every collaborator once from cfg
func FromConfig(cfg *model.Config, log *zap.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry, err := extract.NewDefaultRegistry(cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("extractors: %w", err)
	}

	semantic, err := llm.NewSemanticScorer(cfg.Semantic, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("semantic scorer: %w", err)
	}

	structured, err := score.NewStructuredScorer(cfg.Structured)
	if err != nil {
		return nil, fmt.Errorf("structured scorer: %w", err)
	}

	fuser, err := score.NewFuser(cfg.Fusion)
	if err != nil {
		return nil, err
	}

	var verdicts *cache.VerdictCache
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = DefaultCacheDir()
		}
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
		verdicts = cache.NewVerdictCache(store, CacheScope(cfg, structured), cfg.Cache.DiskTTL)
	}

	return New(Deps{
		Fetcher:        fetch.New(cfg, log),
		Extractors:     registry,
		Semantic:       semantic,
		Structured:     structured,
		Fuser:          fuser,
		Cache:          verdicts,
		Logger:         log,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		FetchBudget:    cfg.Pipeline.FetchBudget,
	})
}

// DefaultCacheDir is the verdict cache location under the XDG cache home
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "phishlens", "verdicts")
}

// CacheScope identifies everything besides the URL that shapes a verdict
func CacheScope(cfg *model.Config, structured score.StructuredScorer) string {
	return fmt.Sprintf("%s|%s|%s/%s|%.4f/%.4f/%.4f/%s|whois=%t",
		structured.Schema().Version,
		structured.Name(),
		cfg.Semantic.Provider, cfg.Semantic.Model,
		cfg.Fusion.SemanticWeight, cfg.Fusion.StructuredWeight, cfg.Fusion.Threshold, cfg.Fusion.OnFailure,
		cfg.Extract.Whois.Enabled,
	)
}
