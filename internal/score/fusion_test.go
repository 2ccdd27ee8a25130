package score

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ppiankov/phishlens/internal/model"
)

func fuser(t *testing.T, ws, wt float64, policy string) *Fuser {
	t.Helper()
	f, err := NewFuser(model.FusionConfig{SemanticWeight: ws, StructuredWeight: wt, Threshold: 0.5, OnFailure: policy})
	if err != nil {
		t.Fatalf("NewFuser: %v", err)
	}
	return f
}

func ok(source model.ScoreSource, p float64) model.SubScore {
	return model.NewSubScore(source, "test", p, time.Millisecond)
}

func failed(source model.ScoreSource) model.SubScore {
	return model.FailedSubScore(source, "test", errors.New("timeout"), time.Millisecond)
}

func TestFuse_Weighted(t *testing.T) {
	res, err := fuser(t, 0.6, 0.4, model.OnFailureRenormalize).Fuse(ok(model.SourceSemantic, 0.8), ok(model.SourceStructured, 0.2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(res.FinalScore-0.56) > 1e-9 {
		t.Errorf("expected 0.56, got %v", res.FinalScore)
	}
	if res.Label != model.LabelPhishing {
		t.Errorf("expected phishing, got %s", res.Label)
	}
	if res.Mode != model.ModeFused || res.Degraded {
		t.Errorf("expected fused, non-degraded result, got %s degraded=%v", res.Mode, res.Degraded)
	}
	if len(res.Signals) != 1 || res.Signals[0].Data["formula"] == "" {
		t.Errorf("expected a fusion signal with formula, got %+v", res.Signals)
	}
}

func TestFuse_ThresholdIsStrict(t *testing.T) {
	res, err := fuser(t, 0.5, 0.5, model.OnFailureRenormalize).Fuse(ok(model.SourceSemantic, 0.5), ok(model.SourceStructured, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalScore != 0.5 {
		t.Errorf("expected exactly 0.5, got %v", res.FinalScore)
	}
	if res.Label != model.LabelLegitimate {
		t.Errorf("score equal to threshold must be legitimate, got %s", res.Label)
	}
}

func TestFuse_DegradationIsNotForcedZero(t *testing.T) {
	res, err := fuser(t, 0.6, 0.4, model.OnFailureRenormalize).Fuse(ok(model.SourceSemantic, 0.8), failed(model.SourceStructured))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	forcedZero := 0.6*0.8 + 0.4*0
	if math.Abs(res.FinalScore-forcedZero) < 1e-9 {
		t.Errorf("failed scorer was treated as probability 0 (%v)", res.FinalScore)
	}
	if math.Abs(res.FinalScore-0.8) > 1e-9 {
		t.Errorf("expected renormalized 0.8, got %v", res.FinalScore)
	}
	if res.Mode != model.ModeSemanticOnly || !res.Degraded {
		t.Errorf("expected degraded semantic-only, got %s degraded=%v", res.Mode, res.Degraded)
	}
	if res.Weights != (model.Weights{Semantic: 1}) {
		t.Errorf("unexpected effective weights %+v", res.Weights)
	}

	var sawDegraded bool
	for _, s := range res.Signals {
		if s.Type == model.SignalDegraded {
			sawDegraded = true
			if s.Data["source"] != string(model.SourceStructured) {
				t.Errorf("degraded signal names wrong source: %v", s.Data["source"])
			}
		}
	}
	if !sawDegraded {
		t.Error("expected a degraded signal")
	}
}

func TestFuse_StructuredOnly(t *testing.T) {
	res, err := fuser(t, 0.6, 0.4, model.OnFailureRenormalize).Fuse(failed(model.SourceSemantic), ok(model.SourceStructured, 0.3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != model.ModeStructuredOnly || res.FinalScore != 0.3 || res.Label != model.LabelLegitimate {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFuse_BothFailed(t *testing.T) {
	for _, policy := range []string{model.OnFailureRenormalize, model.OnFailureFail} {
		t.Run(policy, func(t *testing.T) {
			_, err := fuser(t, 0.6, 0.4, policy).Fuse(failed(model.SourceSemantic), failed(model.SourceStructured))
			if !errors.Is(err, ErrNoScores) {
				t.Errorf("expected ErrNoScores, got %v", err)
			}
		})
	}

	_, err := fuser(t, 0.6, 0.4, model.OnFailureRenormalize).Fuse(model.SkippedSubScore(model.SourceSemantic), failed(model.SourceStructured))
	if !errors.Is(err, ErrNoScores) {
		t.Errorf("skipped + failed should be ErrNoScores, got %v", err)
	}
}

func TestFuse_FailPolicy(t *testing.T) {
	_, err := fuser(t, 0.6, 0.4, model.OnFailureFail).Fuse(ok(model.SourceSemantic, 0.9), failed(model.SourceStructured))
	if !errors.Is(err, ErrScorerFailed) {
		t.Errorf("expected ErrScorerFailed, got %v", err)
	}
}

func TestFuse_SkippedIsNotDegradation(t *testing.T) {
	res, err := fuser(t, 0.6, 0.4, model.OnFailureFail).Fuse(model.SkippedSubScore(model.SourceSemantic), ok(model.SourceStructured, 0.7))
	if err != nil {
		t.Fatalf("an unconfigured scorer must not trip the fail policy: %v", err)
	}
	if res.Degraded || res.Mode != model.ModeStructuredOnly || res.Label != model.LabelPhishing {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFuse_Clamps(t *testing.T) {
	res, err := fuser(t, 0.5, 0.5, model.OnFailureRenormalize).Fuse(ok(model.SourceSemantic, 1.4), ok(model.SourceStructured, 1.2))
	if err != nil {
		t.Fatal(err)
	}
	if res.FinalScore != 1 {
		t.Errorf("expected clamped 1, got %v", res.FinalScore)
	}
}

func TestNewFuser_RejectsInvalidConfig(t *testing.T) {
	bad := []model.FusionConfig{
		{SemanticWeight: 0.7, StructuredWeight: 0.7, Threshold: 0.5, OnFailure: model.OnFailureRenormalize},
		{SemanticWeight: 0.6, StructuredWeight: 0.4, Threshold: 1.5, OnFailure: model.OnFailureRenormalize},
		{SemanticWeight: 0.6, StructuredWeight: 0.4, Threshold: 0.5, OnFailure: "zero"},
		{SemanticWeight: math.NaN(), StructuredWeight: 1, Threshold: 0.5, OnFailure: model.OnFailureRenormalize},
		{SemanticWeight: 0, StructuredWeight: math.NaN(), Threshold: 0.5, OnFailure: model.OnFailureRenormalize},
	}
	for _, cfg := range bad {
		if _, err := NewFuser(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
