package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/worker"
)

func sampleVerdict() *model.Verdict {
	return &model.Verdict{
		ID:         "req-1",
		URL:        "https://login.example-secure.top/verify",
		FinalScore: 0.82,
		Label:      model.LabelPhishing,
		Mode:       model.ModeFused,
		Contributing: []model.SubScore{
			{Source: model.SourceSemantic, Provider: "openai", Probability: 0.9},
			{Source: model.SourceStructured, Provider: "linear", Probability: 0.7},
		},
		Weights:   model.Weights{Semantic: 0.6, Structured: 0.4},
		Threshold: 0.5,
		Fetch: model.FetchSummary{
			Available: true,
			Strategy:  model.StrategyHTTP,
			FinalURL:  "https://login.example-secure.top/verify",
			Title:     "Verify your account",
			Meta:      &model.FetchMeta{StatusCode: 200, Bytes: 1234},
		},
		Features: model.FeatureVector{
			SchemaVersion: "v1",
			Names:         []string{"UrlLength", "NumForms", "HasPasswordField"},
			Values:        []float64{39, 1, 0},
		},
		Signals: []model.Signal{{
			Type:        model.SignalFusion,
			Severity:    model.SeverityInfo,
			Description: "Fused both sub-scores",
			Data:        map[string]interface{}{"formula": "semantic_weight * semantic + structured_weight * structured"},
		}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestWriteJSON(t *testing.T) {
	r := NewRenderer(false, nil)
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf, sampleVerdict()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["label"] != "phishing" {
		t.Errorf("label = %v, want phishing", decoded["label"])
	}
	if decoded["final_score"] != 0.82 {
		t.Errorf("final_score = %v, want 0.82", decoded["final_score"])
	}
	if !strings.Contains(buf.String(), "\n  \"") {
		t.Error("expected indented output")
	}
}

func TestWriteMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *model.Verdict)
		footer  bool
		want    []string
		notWant []string
	}{
		{
			name: "phishing",
			want: []string{
				"# Phishing Verdict",
				"https://login.example-secure.top/verify",
				"**PHISHING**",
				"0.820",
				"[!CAUTION]",
				"## Sub-scores",
				"openai",
				"pie",
				"Verify your account",
				"UrlLength",
				"Fusion formula",
			},
			notWant: []string{"HasPasswordField", "Generated by phishlens"},
		},
		{
			name: "legitimate with footer",
			mutate: func(v *model.Verdict) {
				v.Label = model.LabelLegitimate
				v.FinalScore = 0.1
			},
			footer: true,
			want:   []string{"[!TIP]", "legitimate", "Generated by phishlens"},
		},
		{
			name: "degraded",
			mutate: func(v *model.Verdict) {
				v.Label = model.LabelLegitimate
				v.Mode = model.ModeStructuredOnly
				v.Degraded = true
				v.Contributing[0] = model.SubScore{Source: model.SourceSemantic, Provider: "openai", Error: "status 500"}
			},
			want: []string{"[!WARNING]", "only the structured score", "failed: status 500"},
		},
		{
			name: "unavailable page",
			mutate: func(v *model.Verdict) {
				v.Label = model.LabelLegitimate
				v.Fetch = model.FetchSummary{
					Reason:   "dial tcp: connection refused",
					Attempts: []model.FetchStrategy{model.StrategyHTTP, model.StrategyRender},
				}
			},
			want: []string{"[!IMPORTANT]", "unavailable", "http, render", "connection refused"},
		},
		{
			name: "all zero features",
			mutate: func(v *model.Verdict) {
				v.Label = model.LabelLegitimate
				v.FeaturesAllZero = true
				v.Features.Values = []float64{0, 0, 0}
				v.Features.Mismatch = model.SchemaMismatch{Missing: []string{"NumForms"}}
			},
			want: []string{"all-zero feature vector", "All features are zero.", "Schema mismatch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := sampleVerdict()
			if tt.mutate != nil {
				tt.mutate(v)
			}
			var buf bytes.Buffer
			if err := NewRenderer(tt.footer, nil).WriteMarkdown(&buf, v); err != nil {
				t.Fatalf("WriteMarkdown: %v", err)
			}
			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q", s)
				}
			}
		})
	}
}

func TestRenderFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	r := NewRenderer(true, nil)
	v := sampleVerdict()

	jsonPath := filepath.Join(dir, "verdict.json")
	if err := r.RenderJSON(v, jsonPath); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	mdPath := filepath.Join(dir, "verdict.md")
	if err := r.RenderMarkdown(v, mdPath); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var back model.Verdict
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.ID != v.ID || back.Label != v.Label {
		t.Errorf("round trip = %+v", back)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(md), "# Phishing Verdict") {
		t.Errorf("unexpected markdown start: %.40q", md)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	v := sampleVerdict()
	v.FeaturesAllZero = true
	v.Degraded = true
	NewRenderer(false, &buf).RenderSummary(v)

	out := buf.String()
	for _, s := range []string{"PHISHING", v.URL, "0.820", "semantic", "0.900", "Fetched via http", "Degraded", "all-zero"} {
		if !strings.Contains(out, s) {
			t.Errorf("summary missing %q\n%s", s, out)
		}
	}
}

func TestRenderSummary_Unavailable(t *testing.T) {
	var buf bytes.Buffer
	v := sampleVerdict()
	v.Fetch = model.FetchSummary{Reason: "timeout"}
	NewRenderer(false, &buf).RenderSummary(v)

	if !strings.Contains(buf.String(), "Page unavailable: timeout") {
		t.Errorf("summary = %s", buf.String())
	}
}

func TestRenderBatchSummary(t *testing.T) {
	phish := sampleVerdict()
	legit := sampleVerdict()
	legit.URL = "https://example.org/"
	legit.Label = model.LabelLegitimate
	legit.Degraded = true

	results := []*worker.ClassifyResult{
		{Index: 0, URL: phish.URL, Verdict: phish},
		{Index: 1, URL: legit.URL, Verdict: legit},
		{Index: 2, URL: "https://broken.example/", Error: errors.New("fuse scores: no scores")},
		nil,
	}

	var buf bytes.Buffer
	NewRenderer(false, &buf).RenderBatchSummary(results)
	out := buf.String()

	for _, s := range []string{
		"Batch results (4 URLs)",
		"https://broken.example/",
		"no scores",
		"Phishing: 1  Legitimate: 1  Degraded: 1  Failed: 1",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("batch summary missing %q\n%s", s, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"héllo wörld", 6, "hél..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
