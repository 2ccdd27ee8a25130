package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/ppiankov/phishlens/internal/model"
	"golang.org/x/net/html"
)

// Behavioral feature names
const (
	FeatRightClickDisabled  = "RightClickDisabled"
	FeatFakeLinkInStatusBar = "FakeLinkInStatusBar"
	FeatPopUpWindow         = "PopUpWindow"
	FeatExtMetaScriptLinkRT = "ExtMetaScriptLinkRT"
)

var behavioralKeys = []string{
	FeatRightClickDisabled, FeatFakeLinkInStatusBar, FeatPopUpWindow, FeatExtMetaScriptLinkRT,
}

var (
	contextMenuHandler = regexp.MustCompile(`(?i)(addEventListener\s*\(\s*['"]contextmenu['"]|\.oncontextmenu\s*=|event\.button\s*===?\s*2|\.button\s*===?\s*2)`)
	popupCall          = regexp.MustCompile(`\bwindow\.open\s*\(`)
)

// Behavioral approximates client-side behavior from markup.
//
// It pattern-matches handler registrations and script text instead of
// executing them, so it sees what a page declares, not what a browser would
// observe. When the document came from the rendering fallback the markup is
// post-script, which narrows the gap but does not close it.
type Behavioral struct{}

// NewBehavioral creates a behavioral extractor
func NewBehavioral() *Behavioral {
	return &Behavioral{}
}

// Name returns the extractor name
func (b *Behavioral) Name() string { return "behavioral" }

// Keys returns the behavioral feature names
func (b *Behavioral) Keys() []string { return behavioralKeys }

// Defaults returns all-zero behavioral features
func (b *Behavioral) Defaults() model.FeatureSet {
	return defaults(behavioralKeys, nil)
}

// Extract computes behavioral features from the fetched document
func (b *Behavioral) Extract(_ context.Context, rawURL string, result model.FetchResult) model.FeatureSet {
	if !result.Available() || result.Document.Root == nil {
		return b.Defaults()
	}
	doc := result.Document

	pageURL := doc.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	base := parseURL(pageURL)
	page := newSiteMatcher(base.Hostname())

	f := b.Defaults()
	var rightClick bool
	var tagged, external int

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := attr(n, "oncontextmenu"); ok {
				rightClick = true
			}

			switch n.Data {
			case "a":
				if href, ok := attr(n, "href"); ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
					f[FeatFakeLinkInStatusBar]++
				}
			case "script":
				code := nodeText(n)
				if contextMenuHandler.MatchString(code) {
					rightClick = true
				}
				if popupCall.MatchString(code) {
					f[FeatPopUpWindow]++
				}
			}

			switch n.Data {
			case "meta", "script", "link":
				tagged++
				ref, ok := attr(n, "src")
				if !ok {
					ref, ok = attr(n, "href")
				}
				if !ok && n.Data == "meta" {
					ref, _ = attr(n, "content")
				}
				if target := resolveURL(base, ref); target != "" && strings.Contains(strings.ToLower(ref), "//") && !page.owns(target) {
					external++
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root)

	f[FeatRightClickDisabled] = boolFeature(rightClick)
	f[FeatExtMetaScriptLinkRT] = ratio(external, tagged)

	return f
}
