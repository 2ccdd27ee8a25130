package model

import "time"

// Verdict is the fused classification of a single URL.
// It is built once per request and never mutated afterwards.
type Verdict struct {
	ID         string     `json:"id"`          // Random request identifier
	URL        string     `json:"url"`         // URL as supplied by the caller
	FinalScore float64    `json:"final_score"` // Fused probability in [0,1]
	Label      Label      `json:"label"`       // phishing or legitimate
	Mode       FusionMode `json:"mode"`        // Which sub-scores contributed
	Degraded   bool       `json:"degraded"`    // True when a sub-score was unavailable

	Contributing []SubScore `json:"contributing_scores"` // Semantic and structured sub-scores, failed ones included
	Weights      Weights    `json:"weights"`             // Effective weights after degradation
	Threshold    float64    `json:"threshold"`           // Phishing iff final_score > threshold

	Fetch           FetchSummary  `json:"fetch"`             // How (or whether) the page was retrieved
	Features        FeatureVector `json:"features"`          // Schema-aligned vector given to the structured scorer
	FeaturesAllZero bool          `json:"features_all_zero"` // Structured score was computed from an all-zero vector

	Signals []Signal `json:"signals,omitempty"` // Diagnostic signals with transparent data

	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// IsPhishing reports whether the verdict label is phishing
func (v *Verdict) IsPhishing() bool {
	return v.Label == LabelPhishing
}

// Score returns the contributing sub-score for the given source
func (v *Verdict) Score(source ScoreSource) (SubScore, bool) {
	for _, s := range v.Contributing {
		if s.Source == source {
			return s, true
		}
	}
	return SubScore{}, false
}

// Label is the binary classification outcome
type Label string

const (
	LabelPhishing   Label = "phishing"
	LabelLegitimate Label = "legitimate"
)

// FusionMode records which sub-scores the final score was computed from
type FusionMode string

const (
	ModeFused          FusionMode = "fused"
	ModeSemanticOnly   FusionMode = "semantic-only"
	ModeStructuredOnly FusionMode = "structured-only"
)

// Weights are the fusion weights for the two sub-scores
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Structured float64 `json:"structured"`
}

// FetchSummary is the part of a FetchResult that outlives the request
type FetchSummary struct {
	Available bool            `json:"available"`
	Strategy  FetchStrategy   `json:"strategy,omitempty"`  // Strategy that produced the document
	FinalURL  string          `json:"final_url,omitempty"` // After redirects
	Title     string          `json:"title,omitempty"`
	Gated     bool            `json:"gated,omitempty"`  // Document looked like a script-gated shell
	Reason    string          `json:"reason,omitempty"` // Unavailable or gate reason
	Attempts  []FetchStrategy `json:"attempts,omitempty"`
	Meta      *FetchMeta      `json:"meta,omitempty"`
}

// Summarize reduces a fetch result to its reportable fields
func (r FetchResult) Summarize() FetchSummary {
	if d := r.Document; d != nil {
		meta := d.Meta
		return FetchSummary{
			Available: true,
			Strategy:  d.Strategy,
			FinalURL:  d.FinalURL,
			Title:     d.Title,
			Gated:     d.Gated,
			Reason:    d.GateReason,
			Meta:      &meta,
		}
	}
	if u := r.Unavailable; u != nil {
		return FetchSummary{
			Reason:   u.Reason,
			Attempts: u.Attempts,
		}
	}
	return FetchSummary{Reason: "no fetch attempted"}
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Formula and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalFusion           SignalType = "fusion"            // How the final score was formed
	SignalDegraded         SignalType = "degraded"          // A sub-score was unavailable
	SignalFetchUnavailable SignalType = "fetch_unavailable" // No document could be retrieved
	SignalScriptGated      SignalType = "script_gated"      // Only a script-gated shell was retrieved
	SignalErrorStatus      SignalType = "error_status"      // The page was served with a non-2xx status
	SignalAllZeroFeatures  SignalType = "all_zero_features" // Structured input carried no information
	SignalSchemaMismatch   SignalType = "schema_mismatch"   // Extractors and model schema disagree
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
