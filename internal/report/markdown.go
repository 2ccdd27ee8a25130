package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/ppiankov/phishlens/internal/model"
)

// WriteMarkdown renders a verdict as a Markdown document
func (r *Renderer) WriteMarkdown(w io.Writer, v *model.Verdict) error {
	md := markdown.NewMarkdown(w)

	md.H1("Phishing Verdict")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + v.URL + "`"},
			{"Label", labelText(v)},
			{"Final score", fmt.Sprintf("%.3f", v.FinalScore)},
			{"Threshold", fmt.Sprintf("%.2f", v.Threshold)},
			{"Mode", string(v.Mode)},
			{"Request ID", "`" + v.ID + "`"},
			{"Classified at", v.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")
	writeAlert(md, v)

	writeScores(md, v)
	writeFetch(md, v)
	writeSignals(md, v)
	writeFeatures(md, v)

	if r.includeFooter {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText("*Generated by phishlens. Scores are model estimates, not proof of intent.*")
	}

	return md.Build()
}

func labelText(v *model.Verdict) string {
	if v.IsPhishing() {
		return "🔴 **PHISHING**"
	}
	return "🟢 legitimate"
}

func writeAlert(md *markdown.Markdown, v *model.Verdict) {
	switch {
	case v.IsPhishing():
		md.Cautionf("Classified as phishing with score %.3f (threshold %.2f).", v.FinalScore, v.Threshold)
	case v.Degraded:
		md.Warningf("Verdict is degraded: only the %s score contributed.", strings.TrimSuffix(string(v.Mode), "-only"))
	case v.FeaturesAllZero:
		md.Warningf("The structured score was computed from an all-zero feature vector.")
	case !v.Fetch.Available:
		md.Importantf("The page could not be retrieved: %s", v.Fetch.Reason)
	default:
		md.Tip("No phishing indicators above the threshold.")
	}
	md.PlainText("")
}

func writeScores(md *markdown.Markdown, v *model.Verdict) {
	md.H2("Sub-scores")
	md.PlainText("")

	rows := make([][]string, 0, len(v.Contributing))
	for _, s := range v.Contributing {
		weight := v.Weights.Semantic
		if s.Source == model.SourceStructured {
			weight = v.Weights.Structured
		}
		rows = append(rows, []string{
			string(s.Source),
			dash(s.Provider),
			subScoreText(s),
			fmt.Sprintf("%.2f", weight),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Provider", "Probability", "Weight"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Contribution to final score (per mille)"),
		piechart.WithShowData(true),
	)
	contributed := false
	for _, s := range v.Contributing {
		if !s.Usable() {
			continue
		}
		weight := v.Weights.Semantic
		if s.Source == model.SourceStructured {
			weight = v.Weights.Structured
		}
		if part := uint64(math.Round(1000 * weight * s.Probability)); part > 0 {
			chart.LabelAndIntValue(string(s.Source), part)
			contributed = true
		}
	}
	if contributed {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func subScoreText(s model.SubScore) string {
	switch {
	case s.Skipped:
		return "skipped (not configured)"
	case s.Failed():
		return "failed: " + truncate(s.Error, 60)
	default:
		return fmt.Sprintf("%.3f", s.Probability)
	}
}

func writeFetch(md *markdown.Markdown, v *model.Verdict) {
	md.H2("Page Retrieval")
	md.PlainText("")

	f := v.Fetch
	if !f.Available {
		attempts := make([]string, len(f.Attempts))
		for i, a := range f.Attempts {
			attempts[i] = string(a)
		}
		md.Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Status", "unavailable"},
				{"Attempts", dash(strings.Join(attempts, ", "))},
				{"Reason", dash(truncate(f.Reason, 120))},
			},
		})
		md.PlainText("")
		return
	}

	rows := [][]string{
		{"Status", "retrieved"},
		{"Strategy", string(f.Strategy)},
		{"Final URL", "`" + f.FinalURL + "`"},
		{"Title", dash(f.Title)},
	}
	if f.Gated {
		rows = append(rows, []string{"Gated", "yes: " + f.Reason})
	}
	if f.Meta != nil {
		rows = append(rows,
			[]string{"HTTP status", fmt.Sprintf("%d", f.Meta.StatusCode)},
			[]string{"Bytes", fmt.Sprintf("%d", f.Meta.Bytes)},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeSignals(md *markdown.Markdown, v *model.Verdict) {
	md.H2("Signals")
	md.PlainText("")

	if len(v.Signals) == 0 {
		md.PlainText("No signals.")
		md.PlainText("")
		return
	}

	items := make([]string, len(v.Signals))
	for i, s := range v.Signals {
		items[i] = fmt.Sprintf("%s **%s**: %s", severityIcon(s.Severity), s.Type, s.Description)
	}
	md.BulletList(items...)
	md.PlainText("")

	for _, s := range v.Signals {
		if s.Type == model.SignalFusion {
			if formula, ok := s.Data["formula"].(string); ok {
				md.Details("Fusion formula", formula)
			}
		}
	}
}

func writeFeatures(md *markdown.Markdown, v *model.Verdict) {
	md.H2("Features")
	md.PlainText("")
	md.PlainTextf("Schema `%s`, %d features.", dash(v.Features.SchemaVersion), v.Features.Len())
	md.PlainText("")

	var rows [][]string
	for i, name := range v.Features.Names {
		if v.Features.Values[i] == 0 {
			continue
		}
		rows = append(rows, []string{name, formatValue(v.Features.Values[i])})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	if len(rows) == 0 {
		md.PlainText("All features are zero.")
		md.PlainText("")
	} else {
		md.Table(markdown.TableSet{
			Header: []string{"Feature", "Value"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	m := v.Features.Mismatch
	if !m.Empty() {
		md.Details("Schema mismatch", fmt.Sprintf("missing: %s; dropped: %s",
			dash(strings.Join(m.Missing, ", ")), dash(strings.Join(m.Dropped, ", "))))
	}
}

func severityIcon(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}

func formatValue(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.3f", f)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
