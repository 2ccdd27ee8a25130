// Package fetch retrieves page markup for classification.
//
// Fetchers never return errors. Every failure, from DNS to a page that only
// renders with JavaScript, is expressed as a model.FetchResult so that
// extraction can always proceed with whatever exists.
package fetch

import (
	"context"
	"mime"
	"strings"

	"github.com/ppiankov/phishlens/internal/metrics"
	"github.com/ppiankov/phishlens/internal/model"
)

// Fetcher retrieves a page and reports it as a Document or Unavailable
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) model.FetchResult
}

// Func adapts a function to the Fetcher interface
type Func func(ctx context.Context, rawURL string) model.FetchResult

// Fetch calls f
func (f Func) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	return f(ctx, rawURL)
}

// Fetch outcomes recorded in metrics
const (
	outcomeDocument    = "document"
	outcomeGated       = "gated"
	outcomeUnavailable = "unavailable"
	outcomeBlocked     = "blocked"
)

// markupTypes are the content types worth parsing
var markupTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"application/xml":       true,
	"text/xml":              true,
}

// isMarkup reports whether a Content-Type header names parseable markup.
// A missing header is accepted and left to the parser.
func isMarkup(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return markupTypes[strings.ToLower(mediaType)]
}

// gateReason explains why a document looks like a script-gated shell, or "" if it does not
func gateReason(doc *model.Document) string {
	switch {
	case strings.TrimSpace(doc.Snippet) == "":
		return "no visible text"
	case strings.Contains(strings.ToLower(doc.Snippet), "enable javascript"):
		return "page asks to enable javascript"
	case strings.TrimSpace(doc.Title) == "":
		return "missing title"
	}
	return ""
}

// markGated flags doc when it looks script-gated
func markGated(doc *model.Document) {
	if reason := gateReason(doc); reason != "" {
		doc.Gated = true
		doc.GateReason = reason
	}
}

// sufficient reports whether a result can be used without a fallback
func sufficient(r model.FetchResult) bool {
	return r.Available() && !r.Document.Gated
}

func outcome(r model.FetchResult) string {
	switch {
	case r.Available() && r.Document.Gated:
		return outcomeGated
	case r.Available():
		return outcomeDocument
	case r.Unavailable != nil && r.Unavailable.Blocked:
		return outcomeBlocked
	}
	return outcomeUnavailable
}

func record(strategy model.FetchStrategy, r model.FetchResult) {
	metrics.FetchTotal.WithLabelValues(string(strategy), outcome(r)).Inc()
}
