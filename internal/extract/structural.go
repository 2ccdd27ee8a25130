package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/phishlens/internal/model"
)

// Structural feature names
const (
	FeatMissingTitle                  = "MissingTitle"
	FeatNumForms                      = "NumForms"
	FeatInsecureForms                 = "InsecureForms"
	FeatRelativeFormAction            = "RelativeFormAction"
	FeatAbnormalFormAction            = "AbnormalFormAction"
	FeatSubmitInfoToEmail             = "SubmitInfoToEmail"
	FeatImageOnlyForms                = "ImageOnlyForms"
	FeatExtFormAction                 = "ExtFormAction"
	FeatPctExtHyperlinks              = "PctExtHyperlinks"
	FeatPctExtResourceUrls            = "PctExtResourceUrls"
	FeatExtFavicon                    = "ExtFavicon"
	FeatIframeOrFrame                 = "IframeOrFrame"
	FeatPctNullSelfRedirectHyperlinks = "PctNullSelfRedirectHyperlinks"
	FeatPctDomainMismatch             = "PctDomainMismatch"
	FeatFrequentDomainNameMismatch    = "FrequentDomainNameMismatch"
)

var structuralKeys = []string{
	FeatMissingTitle, FeatNumForms, FeatInsecureForms, FeatRelativeFormAction,
	FeatAbnormalFormAction, FeatSubmitInfoToEmail, FeatImageOnlyForms, FeatExtFormAction,
	FeatPctExtHyperlinks, FeatPctExtResourceUrls, FeatExtFavicon, FeatIframeOrFrame,
	FeatPctNullSelfRedirectHyperlinks, FeatPctDomainMismatch, FeatFrequentDomainNameMismatch,
}

// Structural derives features from the document's forms, links and resources
type Structural struct{}

// NewStructural creates a structural extractor
func NewStructural() *Structural {
	return &Structural{}
}

// Name returns the extractor name
func (s *Structural) Name() string { return "structural" }

// Keys returns the structural feature names
func (s *Structural) Keys() []string { return structuralKeys }

// Defaults is the feature set of a document with no title and no elements.
// Unavailable fetches produce exactly this set.
func (s *Structural) Defaults() model.FeatureSet {
	return defaults(structuralKeys, model.FeatureSet{FeatMissingTitle: 1})
}

// Extract computes structural features from the fetched document
func (s *Structural) Extract(_ context.Context, rawURL string, result model.FetchResult) model.FeatureSet {
	if !result.Available() || result.Document.Root == nil {
		return s.Defaults()
	}
	doc := result.Document

	pageURL := doc.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	base := parseURL(pageURL)
	page := newSiteMatcher(base.Hostname())

	f := s.Defaults()
	sel := goquery.NewDocumentFromNode(doc.Root)

	f[FeatMissingTitle] = boolFeature(strings.TrimSpace(doc.Title) == "")

	s.forms(sel.Selection, base, page, f)

	// Anchors
	var anchors, external, nullSelf, anchorTargets int
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		anchors++
		href, ok := a.Attr("href")
		if ok && isNullOrSelfRedirect(href) {
			nullSelf++
		}
		if target := resolveURL(base, href); target != "" {
			anchorTargets++
			if !page.owns(target) {
				external++
			}
		}
	})
	f[FeatPctExtHyperlinks] = ratio(external, anchors)
	f[FeatPctNullSelfRedirectHyperlinks] = ratio(nullSelf, anchors)

	// Embedded resources
	var resources, extResources int
	sel.Find("script[src], img[src], link[rel~=stylesheet][href]").Each(func(_ int, r *goquery.Selection) {
		ref, ok := r.Attr("src")
		if !ok {
			ref, _ = r.Attr("href")
		}
		resources++
		if target := resolveURL(base, ref); target != "" && !page.owns(target) {
			extResources++
		}
	})
	f[FeatPctExtResourceUrls] = ratio(extResources, resources)

	if icon := sel.Find("link[rel~=icon][href]").First(); icon.Length() > 0 {
		href, _ := icon.Attr("href")
		if target := resolveURL(base, href); target != "" {
			f[FeatExtFavicon] = boolFeature(!page.owns(target))
		}
	}

	f[FeatIframeOrFrame] = boolFeature(sel.Find("iframe, frame").Length() > 0)

	mismatch := ratio(external+extResources, anchorTargets+resources)
	f[FeatPctDomainMismatch] = mismatch
	f[FeatFrequentDomainNameMismatch] = boolFeature(mismatch > 0.5)

	return f
}

// forms classifies every <form> by its action attribute
func (s *Structural) forms(sel *goquery.Selection, base *url.URL, page siteMatcher, f model.FeatureSet) {
	sel.Find("form").Each(func(_ int, form *goquery.Selection) {
		f[FeatNumForms]++

		action, _ := form.Attr("action")
		action = strings.TrimSpace(action)
		lower := strings.ToLower(action)

		switch {
		case action == "" || lower == "about:blank" || strings.HasPrefix(lower, "javascript:"):
			f[FeatAbnormalFormAction]++
		case strings.HasPrefix(lower, "mailto:"):
			f[FeatSubmitInfoToEmail]++
		default:
			if strings.HasPrefix(lower, "http://") {
				f[FeatInsecureForms]++
			}
			if isAbsoluteRef(lower) {
				if target := resolveURL(base, action); target != "" && !page.owns(target) {
					f[FeatExtFormAction]++
				}
			} else {
				f[FeatRelativeFormAction]++
			}
		}

		controls := form.Find("input, select, textarea, button").Length()
		if controls == 0 && form.Find("img").Length() > 0 {
			f[FeatImageOnlyForms]++
		}
	})
}

// isNullOrSelfRedirect matches hrefs that go nowhere
func isNullOrSelfRedirect(href string) bool {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(href), " ", "")) {
	case "", "#", "#!", "javascript:void(0)", "javascript:void(0);", "javascript:;":
		return true
	}
	return false
}

// isAbsoluteRef reports whether ref names its own scheme or host
func isAbsoluteRef(ref string) bool {
	if strings.HasPrefix(ref, "//") {
		return true
	}
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != ""
}

// siteMatcher decides whether a target URL belongs to the page's site
type siteMatcher struct {
	host        string
	registrable string
}

func newSiteMatcher(host string) siteMatcher {
	parts := SplitDomain(host)
	return siteMatcher{host: parts.Host, registrable: parts.Registrable}
}

// owns compares registrable domains, or exact hosts when the page has none
func (m siteMatcher) owns(target string) bool {
	host := strings.ToLower(parseURL(target).Hostname())
	if m.registrable != "" {
		return RegistrableDomain(host) == m.registrable
	}
	return host == m.host
}
