package model

import (
	"time"

	"golang.org/x/net/html"
)

// FetchStrategy names the transport that produced a document
type FetchStrategy string

const (
	StrategyHTTP   FetchStrategy = "http"   // Plain HTTP GET
	StrategyRender FetchStrategy = "render" // Headless browser rendering
)

// FetchMeta contains transport metadata for a fetched document
type FetchMeta struct {
	StatusCode  int               `json:"status_code,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Bytes       int64             `json:"bytes"`
	Duration    time.Duration     `json:"duration_ns"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Document is a parsed page
type Document struct {
	Root       *html.Node    // Parsed markup
	Title      string        // Trimmed <title> text, empty if missing
	Snippet    string        // Leading visible text, bounded length
	FinalURL   string        // URL after redirects
	Strategy   FetchStrategy // Which strategy produced it
	Gated      bool          // Looks like a script-gated shell page
	GateReason string        // Why it was considered gated
	Meta       FetchMeta
}

// Unavailable explains why no document could be produced
type Unavailable struct {
	Reason   string          // Human-readable cause, joined across attempts
	Attempts []FetchStrategy // Strategies that were tried
	Blocked  bool            // Refused by policy, no strategy may retry
}

// FetchResult is either a Document or Unavailable, never both.
// It lives for one request and is not cached.
type FetchResult struct {
	Document    *Document
	Unavailable *Unavailable
}

// DocumentResult wraps a parsed document
func DocumentResult(doc *Document) FetchResult {
	return FetchResult{Document: doc}
}

// UnavailableResult builds an Unavailable fetch result
func UnavailableResult(reason string, attempts ...FetchStrategy) FetchResult {
	return FetchResult{Unavailable: &Unavailable{Reason: reason, Attempts: attempts}}
}

// BlockedResult builds an Unavailable result that must not be escalated
func BlockedResult(reason string, attempts ...FetchStrategy) FetchResult {
	return FetchResult{Unavailable: &Unavailable{Reason: reason, Attempts: attempts, Blocked: true}}
}

// Available reports whether a document is present
func (r FetchResult) Available() bool {
	return r.Document != nil
}

// Reason returns the unavailable reason, or "" when a document is present
func (r FetchResult) Reason() string {
	if r.Unavailable != nil {
		return r.Unavailable.Reason
	}
	return ""
}
