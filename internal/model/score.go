package model

import "time"

// ScoreSource tags where a sub-score came from
type ScoreSource string

const (
	SourceSemantic   ScoreSource = "semantic"
	SourceStructured ScoreSource = "structured"
)

// SubScore is one scorer's phishing probability for a request.
// A failed or skipped sub-score carries no usable probability.
type SubScore struct {
	Source      ScoreSource   `json:"source"`
	Probability float64       `json:"probability"`
	Provider    string        `json:"provider,omitempty"` // e.g. openai, linear
	Skipped     bool          `json:"skipped,omitempty"`  // Scorer not configured
	Error       string        `json:"error,omitempty"`    // Failure marker
	Duration    time.Duration `json:"duration_ns,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the scorer ran and could not produce a value
func (s SubScore) Failed() bool {
	return s.Err != nil || s.Error != ""
}

// Usable reports whether the probability may be fused
func (s SubScore) Usable() bool {
	return !s.Failed() && !s.Skipped
}

// NewSubScore returns a successful sub-score
func NewSubScore(source ScoreSource, provider string, p float64, took time.Duration) SubScore {
	return SubScore{
		Source:      source,
		Provider:    provider,
		Probability: p,
		Duration:    took,
	}
}

// FailedSubScore returns a sub-score marked with the scorer's error
func FailedSubScore(source ScoreSource, provider string, err error, took time.Duration) SubScore {
	return SubScore{
		Source:   source,
		Provider: provider,
		Err:      err,
		Error:    err.Error(),
		Duration: took,
	}
}

// SkippedSubScore returns a sub-score for a scorer that is not configured
func SkippedSubScore(source ScoreSource) SubScore {
	return SubScore{Source: source, Skipped: true}
}
