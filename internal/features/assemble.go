package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/phishlens/internal/model"
)

// ErrFeatureCollision means two extractors produced the same feature name.
// It is a configuration error; there is no precedence rule.
var ErrFeatureCollision = errors.New("feature collision")

// Merge combines extractor outputs, rejecting any key produced twice
func Merge(sets ...model.FeatureSet) (model.FeatureSet, error) {
	merged := make(model.FeatureSet)
	for i, set := range sets {
		for k, v := range set {
			if _, dup := merged[k]; dup {
				return nil, fmt.Errorf("%w: %q produced again by extractor #%d", ErrFeatureCollision, k, i)
			}
			merged[k] = v
		}
	}
	return merged, nil
}

// Assemble merges the extractor outputs and projects them onto schema.
// Schema keys that were not produced are 0; produced keys outside the schema
// are dropped. Both cases are reported in the vector's Mismatch.
func Assemble(schema Schema, sets ...model.FeatureSet) (model.FeatureVector, error) {
	merged, err := Merge(sets...)
	if err != nil {
		return model.FeatureVector{}, err
	}

	vec := model.FeatureVector{
		SchemaVersion: schema.Version,
		Names:         make([]string, len(schema.Features)),
		Values:        make([]float64, len(schema.Features)),
		AllZero:       true,
	}
	copy(vec.Names, schema.Features)

	inSchema := make(map[string]bool, len(schema.Features))
	for i, name := range schema.Features {
		inSchema[name] = true
		v, ok := merged[name]
		if !ok {
			vec.Mismatch.Missing = append(vec.Mismatch.Missing, name)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		vec.Values[i] = v
		if v != 0 {
			vec.AllZero = false
		}
	}

	for name := range merged {
		if !inSchema[name] {
			vec.Mismatch.Dropped = append(vec.Mismatch.Dropped, name)
		}
	}
	sort.Strings(vec.Mismatch.Dropped)

	return vec, nil
}
