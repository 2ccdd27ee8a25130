package model

// FeatureSet is the raw output of one extractor
type FeatureSet map[string]float64

// SchemaMismatch lists disagreements between extractors and the model schema
type SchemaMismatch struct {
	Missing []string `json:"missing,omitempty"` // In schema, not produced (filled with 0)
	Dropped []string `json:"dropped,omitempty"` // Produced, not in schema (discarded)
}

// Empty reports whether extractors and schema agree exactly
func (m SchemaMismatch) Empty() bool {
	return len(m.Missing) == 0 && len(m.Dropped) == 0
}

// FeatureVector is a fixed-width vector aligned to a schema
type FeatureVector struct {
	SchemaVersion string         `json:"schema_version,omitempty"`
	Names         []string       `json:"names"`
	Values        []float64      `json:"values"`
	AllZero       bool           `json:"all_zero"`
	Mismatch      SchemaMismatch `json:"mismatch"`
}

// Len returns the vector width
func (v FeatureVector) Len() int {
	return len(v.Names)
}

// Get returns the value of a named feature
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}
