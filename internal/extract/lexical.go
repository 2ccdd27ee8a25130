package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/phishlens/internal/model"
)

// Lexical feature names
const (
	FeatUrlLength          = "UrlLength"
	FeatNumDots            = "NumDots"
	FeatNumDash            = "NumDash"
	FeatNumUnderscore      = "NumUnderscore"
	FeatNumPercent         = "NumPercent"
	FeatAtSymbol           = "AtSymbol"
	FeatTildeSymbol        = "TildeSymbol"
	FeatNumAmpersand       = "NumAmpersand"
	FeatNumHash            = "NumHash"
	FeatNumNumericChars    = "NumNumericChars"
	FeatHostnameLength     = "HostnameLength"
	FeatNumDashInHostname  = "NumDashInHostname"
	FeatPathLevel          = "PathLevel"
	FeatPathLength         = "PathLength"
	FeatQueryLength        = "QueryLength"
	FeatNumQueryComponents = "NumQueryComponents"
	FeatNoHttps            = "NoHttps"
	FeatIpAddress          = "IpAddress"
	FeatSubdomainLevel     = "SubdomainLevel"
	FeatDomainInSubdomains = "DomainInSubdomains"
	FeatDomainInPaths      = "DomainInPaths"
	FeatDoubleSlashInPath  = "DoubleSlashInPath"
	FeatRandomString       = "RandomString"
	FeatHttpsInHostname    = "HttpsInHostname"
	FeatNumSensitiveWords  = "NumSensitiveWords"
	FeatEmbeddedBrandName  = "EmbeddedBrandName"
)

var lexicalKeys = []string{
	FeatUrlLength, FeatNumDots, FeatNumDash, FeatNumUnderscore, FeatNumPercent,
	FeatAtSymbol, FeatTildeSymbol, FeatNumAmpersand, FeatNumHash, FeatNumNumericChars,
	FeatHostnameLength, FeatNumDashInHostname, FeatPathLevel, FeatPathLength,
	FeatQueryLength, FeatNumQueryComponents, FeatNoHttps, FeatIpAddress,
	FeatSubdomainLevel, FeatDomainInSubdomains, FeatDomainInPaths,
	FeatDoubleSlashInPath, FeatRandomString, FeatHttpsInHostname,
	FeatNumSensitiveWords, FeatEmbeddedBrandName,
}

// SensitiveWords is the vocabulary counted by NumSensitiveWords
var SensitiveWords = []string{
	"secure", "login", "verify", "account", "password", "confirm", "banking",
	"signin", "webscr", "ebayisapi", "paypal", "update", "security",
}

var (
	dottedQuad     = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	consonantRun   = regexp.MustCompile(`[bcdfghjklmnpqrstvwxz]{6,}`)
	letterAndDigit = regexp.MustCompile(`[a-z].*[0-9]|[0-9].*[a-z]`)
)

// Lexical derives features from the URL string alone. It performs no I/O.
type Lexical struct {
	brands []string
}

// NewLexical creates a lexical extractor; nil brands selects the built-in list
func NewLexical(brands []string) *Lexical {
	if brands == nil {
		brands = model.DefaultBrands
	}
	lower := make([]string, 0, len(brands))
	for _, b := range brands {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			lower = append(lower, b)
		}
	}
	return &Lexical{brands: lower}
}

// Name returns the extractor name
func (l *Lexical) Name() string { return "lexical" }

// Keys returns the lexical feature names
func (l *Lexical) Keys() []string { return lexicalKeys }

// Defaults returns the features of an empty URL
func (l *Lexical) Defaults() model.FeatureSet {
	return defaults(lexicalKeys, model.FeatureSet{FeatNoHttps: 1})
}

// Extract computes lexical features; the fetch result is ignored
func (l *Lexical) Extract(_ context.Context, rawURL string, _ model.FetchResult) model.FeatureSet {
	return l.ExtractURL(rawURL)
}

// ExtractURL computes lexical features for rawURL. Malformed input degrades
// to empty components and never fails.
func (l *Lexical) ExtractURL(rawURL string) model.FeatureSet {
	f := l.Defaults()

	u := parseURL(rawURL)
	host := strings.ToLower(u.Hostname())
	path := u.EscapedPath()
	if path == "" {
		path = u.Path
	}
	lowerURL := strings.ToLower(rawURL)

	f[FeatUrlLength] = float64(len(rawURL))
	f[FeatNumDots] = float64(strings.Count(rawURL, "."))
	f[FeatNumDash] = float64(strings.Count(rawURL, "-"))
	f[FeatNumUnderscore] = float64(strings.Count(rawURL, "_"))
	f[FeatNumPercent] = float64(strings.Count(rawURL, "%"))
	f[FeatAtSymbol] = float64(strings.Count(rawURL, "@"))
	f[FeatTildeSymbol] = float64(strings.Count(rawURL, "~"))
	f[FeatNumAmpersand] = float64(strings.Count(rawURL, "&"))
	f[FeatNumHash] = float64(strings.Count(rawURL, "#"))
	f[FeatNumNumericChars] = float64(countDigits(rawURL))

	f[FeatHostnameLength] = float64(len(host))
	f[FeatNumDashInHostname] = float64(strings.Count(host, "-"))
	f[FeatPathLevel] = float64(strings.Count(path, "/"))
	f[FeatPathLength] = float64(len(path))
	f[FeatQueryLength] = float64(len(u.RawQuery))
	if u.RawQuery != "" {
		f[FeatNumQueryComponents] = float64(len(strings.Split(u.RawQuery, "&")))
	}

	f[FeatNoHttps] = boolFeature(!strings.HasPrefix(strings.TrimSpace(lowerURL), "https://"))

	parts := SplitDomain(host)
	f[FeatIpAddress] = boolFeature(parts.IP || dottedQuad.MatchString(host))
	f[FeatSubdomainLevel] = float64(len(parts.Subdomains))
	if parts.Label != "" {
		f[FeatDomainInSubdomains] = boolFeature(strings.Contains(strings.Join(parts.Subdomains, "."), parts.Label))
		f[FeatDomainInPaths] = boolFeature(strings.Contains(strings.ToLower(path), parts.Label))
	}

	f[FeatDoubleSlashInPath] = boolFeature(strings.Contains(path, "//"))
	f[FeatRandomString] = boolFeature(hasRandomLabel(host))
	f[FeatHttpsInHostname] = boolFeature(strings.Contains(host, "https"))

	f[FeatNumSensitiveWords] = float64(countContained(lowerURL, SensitiveWords))
	f[FeatEmbeddedBrandName] = float64(countContained(host, l.brands))

	return f
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// countContained counts vocabulary words that occur in s, each at most once
func countContained(s string, words []string) int {
	n := 0
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			n++
		}
	}
	return n
}

// hasRandomLabel flags labels that look machine-generated: long mixed
// letter/digit runs or unpronounceable consonant clusters
func hasRandomLabel(host string) bool {
	for _, label := range strings.Split(host, ".") {
		if len(label) >= 7 && letterAndDigit.MatchString(label) {
			return true
		}
		if consonantRun.MatchString(label) {
			return true
		}
	}
	return false
}
