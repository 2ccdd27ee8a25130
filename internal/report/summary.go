package report

import (
	"fmt"

	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/worker"
)

// RenderSummary prints a short human-readable verdict
func (r *Renderer) RenderSummary(v *model.Verdict) {
	w := r.out

	fmt.Fprintf(w, "\n%s %s\n", labelIcon(v), v.URL)
	fmt.Fprintf(w, "   Score: %.3f (threshold %.2f, %s)\n", v.FinalScore, v.Threshold, v.Mode)

	for _, s := range v.Contributing {
		fmt.Fprintf(w, "   %-10s %s\n", s.Source, subScoreText(s))
	}

	if v.Fetch.Available {
		fmt.Fprintf(w, "   Fetched via %s", v.Fetch.Strategy)
		if v.Fetch.Title != "" {
			fmt.Fprintf(w, ": %q", truncate(v.Fetch.Title, 60))
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "   Page unavailable: %s\n", truncate(v.Fetch.Reason, 100))
	}

	if v.Degraded {
		fmt.Fprintf(w, "   ⚠️  Degraded verdict (%s)\n", v.Mode)
	}
	if v.Fetch.Gated {
		fmt.Fprintf(w, "   ⚠️  Script-gated page: %s\n", v.Fetch.Reason)
	}
	if v.FeaturesAllZero {
		fmt.Fprintf(w, "   ⚠️  Structured score computed from all-zero features\n")
	}
	if m := v.Features.Mismatch; !m.Empty() {
		fmt.Fprintf(w, "   Schema mismatch: %d missing, %d dropped\n", len(m.Missing), len(m.Dropped))
	}
	fmt.Fprintln(w)
}

// RenderBatchSummary prints one line per batch result and the totals
func (r *Renderer) RenderBatchSummary(results []*worker.ClassifyResult) {
	w := r.out
	var phishing, legitimate, degraded, failed int

	fmt.Fprintf(w, "\nBatch results (%d URLs)\n", len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Error != nil {
			failed++
			fmt.Fprintf(w, "  ✗ %-60s %s\n", truncate(res.URL, 60), truncate(res.Error.Error(), 80))
			continue
		}
		v := res.Verdict
		if v.IsPhishing() {
			phishing++
		} else {
			legitimate++
		}
		if v.Degraded {
			degraded++
		}
		fmt.Fprintf(w, "  %s %-60s %.3f %s\n", labelIcon(v), truncate(v.URL, 60), v.FinalScore, v.Mode)
	}

	fmt.Fprintf(w, "\nPhishing: %d  Legitimate: %d  Degraded: %d  Failed: %d\n\n",
		phishing, legitimate, degraded, failed)
}

func labelIcon(v *model.Verdict) string {
	if v.IsPhishing() {
		return "🔴 PHISHING  "
	}
	return "🟢 legitimate"
}
