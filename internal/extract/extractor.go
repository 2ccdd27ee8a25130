package extract

import (
	"context"
	"fmt"

	"github.com/ppiankov/phishlens/internal/features"
	"github.com/ppiankov/phishlens/internal/model"
)

// Extractor turns a URL and its fetch result into named numeric features.
// Extract never fails: any unusable input yields Defaults().
type Extractor interface {
	// Name identifies the extractor in logs and errors
	Name() string

	// Keys lists every feature name the extractor can produce
	Keys() []string

	// Defaults is the feature set produced when there is nothing to extract from
	Defaults() model.FeatureSet

	// Extract computes the feature set
	Extract(ctx context.Context, rawURL string, result model.FetchResult) model.FeatureSet
}

// Registry holds extractors with pairwise-disjoint key sets
type Registry struct {
	extractors []Extractor
	owner      map[string]string
}

// NewRegistry builds a registry and rejects overlapping feature keys
func NewRegistry(extractors ...Extractor) (*Registry, error) {
	r := &Registry{owner: make(map[string]string)}
	for _, e := range extractors {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an extractor, failing if any of its keys is already owned
func (r *Registry) Register(e Extractor) error {
	for _, key := range e.Keys() {
		if prev, ok := r.owner[key]; ok {
			return fmt.Errorf("%w: %q declared by %s and %s", features.ErrFeatureCollision, key, prev, e.Name())
		}
	}
	for _, key := range e.Keys() {
		r.owner[key] = e.Name()
	}
	r.extractors = append(r.extractors, e)
	return nil
}

// Extractors returns registered extractors in registration order
func (r *Registry) Extractors() []Extractor {
	return r.extractors
}

// Keys returns every declared key in registration order
func (r *Registry) Keys() []string {
	var keys []string
	for _, e := range r.extractors {
		keys = append(keys, e.Keys()...)
	}
	return keys
}

// Extract runs every extractor and returns their feature sets in order
func (r *Registry) Extract(ctx context.Context, rawURL string, result model.FetchResult) []model.FeatureSet {
	sets := make([]model.FeatureSet, 0, len(r.extractors))
	for _, e := range r.extractors {
		sets = append(sets, e.Extract(ctx, rawURL, result))
	}
	return sets
}

// NewDefaultRegistry builds the lexical, structural and behavioral extractors,
// plus registration features when whois lookups are enabled.
func NewDefaultRegistry(cfg model.ExtractConfig) (*Registry, error) {
	extractors := []Extractor{
		NewLexical(cfg.Brands),
		NewStructural(),
		NewBehavioral(),
	}
	if cfg.Whois.Enabled {
		extractors = append(extractors, NewRegistration(cfg.Whois.Timeout, cfg.Whois.NewDays))
	}
	return NewRegistry(extractors...)
}

// DefaultSchema is the schema covering every built-in non-network feature
func DefaultSchema() features.Schema {
	var keys []string
	for _, e := range []Extractor{NewLexical(nil), NewStructural(), NewBehavioral()} {
		keys = append(keys, e.Keys()...)
	}
	return features.Schema{Version: "builtin-v1", Features: keys}
}

// defaults builds a zero-valued feature set for keys, with overrides applied
func defaults(keys []string, overrides model.FeatureSet) model.FeatureSet {
	set := make(model.FeatureSet, len(keys))
	for _, k := range keys {
		set[k] = 0
	}
	for k, v := range overrides {
		set[k] = v
	}
	return set
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ratio divides by max(1, d) so empty denominators yield 0
func ratio(n, d int) float64 {
	if d < 1 {
		d = 1
	}
	return float64(n) / float64(d)
}
