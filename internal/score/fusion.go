package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/ppiankov/phishlens/internal/model"
)

var (
	// ErrNoScores means neither sub-scorer produced a usable probability
	ErrNoScores = errors.New("no usable sub-score")

	// ErrScorerFailed means a sub-scorer failed under the fail policy
	ErrScorerFailed = errors.New("sub-scorer failed")
)

// FusionResult is the outcome of combining the two sub-scores
type FusionResult struct {
	FinalScore float64
	Label      model.Label
	Mode       model.FusionMode
	Degraded   bool          // A configured scorer failed and its weight was redistributed
	Weights    model.Weights // Effective weights
	Threshold  float64
	Formula    string
	Signals    []model.Signal
}

// Fuser combines semantic and structured sub-scores into a verdict score
type Fuser struct {
	cfg model.FusionConfig
}

// NewFuser validates cfg and returns a Fuser
func NewFuser(cfg model.FusionConfig) (*Fuser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fusion config: %w", err)
	}
	return &Fuser{cfg: cfg}, nil
}

// Config returns the fusion policy
func (f *Fuser) Config() model.FusionConfig {
	return f.cfg
}

// Fuse computes final = ws*s + wt*t and labels it phishing iff final > threshold.
//
// A scorer that is not configured (Skipped) is left out without counting as
// degradation. A scorer that failed is handled by the OnFailure policy:
// renormalize gives the survivor the full weight, fail returns ErrScorerFailed.
// Nothing usable at all is ErrNoScores regardless of policy.
func (f *Fuser) Fuse(semantic, structured model.SubScore) (FusionResult, error) {
	semOK, strOK := semantic.Usable(), structured.Usable()
	if !semOK && !strOK {
		return FusionResult{}, fmt.Errorf("%w: semantic=%s structured=%s", ErrNoScores, describe(semantic), describe(structured))
	}

	failed := semantic.Failed() || structured.Failed()
	if failed && f.cfg.OnFailure == model.OnFailureFail {
		return FusionResult{}, fmt.Errorf("%w: semantic=%s structured=%s", ErrScorerFailed, describe(semantic), describe(structured))
	}

	res := FusionResult{
		Threshold: f.cfg.Threshold,
		Degraded:  failed,
	}

	switch {
	case semOK && strOK:
		res.Mode = model.ModeFused
		res.Weights = model.Weights{Semantic: f.cfg.SemanticWeight, Structured: f.cfg.StructuredWeight}
		res.Formula = "semantic_weight * semantic + structured_weight * structured"
	case semOK:
		res.Mode = model.ModeSemanticOnly
		res.Weights = model.Weights{Semantic: 1}
		res.Formula = "semantic (structured unavailable, weight renormalized)"
	default:
		res.Mode = model.ModeStructuredOnly
		res.Weights = model.Weights{Structured: 1}
		res.Formula = "structured (semantic unavailable, weight renormalized)"
	}

	var s, t float64
	if semOK {
		s = semantic.Probability
	}
	if strOK {
		t = structured.Probability
	}
	res.FinalScore = clamp(res.Weights.Semantic*s + res.Weights.Structured*t)

	res.Label = model.LabelLegitimate
	if res.FinalScore > res.Threshold {
		res.Label = model.LabelPhishing
	}

	res.Signals = append(res.Signals, model.Signal{
		Type:        model.SignalFusion,
		Severity:    fusionSeverity(res),
		Description: fmt.Sprintf("Final score %.3f (%s, threshold %.2f)", res.FinalScore, res.Mode, res.Threshold),
		Data: map[string]interface{}{
			"semantic":          semantic.Probability,
			"structured":        structured.Probability,
			"semantic_weight":   res.Weights.Semantic,
			"structured_weight": res.Weights.Structured,
			"final":             res.FinalScore,
			"threshold":         res.Threshold,
			"formula":           res.Formula,
		},
	})

	if res.Degraded {
		lost := semantic
		if semOK {
			lost = structured
		}
		res.Signals = append(res.Signals, model.Signal{
			Type:        model.SignalDegraded,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%s scorer failed, verdict uses %s only", lost.Source, survivor(res.Mode)),
			Data: map[string]interface{}{
				"source":   string(lost.Source),
				"provider": lost.Provider,
				"error":    lost.Error,
				"policy":   f.cfg.OnFailure,
			},
		})
	}

	return res, nil
}

func fusionSeverity(res FusionResult) model.SignalSeverity {
	switch {
	case res.Label == model.LabelPhishing:
		return model.SeverityCritical
	case res.Degraded:
		return model.SeverityWarning
	}
	return model.SeverityInfo
}

func survivor(mode model.FusionMode) string {
	if mode == model.ModeSemanticOnly {
		return string(model.SourceSemantic)
	}
	return string(model.SourceStructured)
}

func describe(s model.SubScore) string {
	switch {
	case s.Skipped:
		return "not configured"
	case s.Failed():
		return s.Error
	}
	return fmt.Sprintf("%.3f", s.Probability)
}

// clamp bounds p to [0,1]; NaN becomes 0
func clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}
