package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/ppiankov/phishlens/internal/model"
)

// Registration feature names
const (
	FeatDomainAgeDays = "DomainAgeDays"
	FeatNewDomain     = "NewDomain"
)

var registrationKeys = []string{FeatDomainAgeDays, FeatNewDomain}

// createdLayouts are the creation-date formats seen across registries
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisFunc returns the raw whois record for a domain
type WhoisFunc func(domain string) (string, error)

// Registration looks up the registrable domain's creation date over whois.
// Unknown age is reported as DomainAgeDays=-1.
type Registration struct {
	lookup  WhoisFunc
	timeout time.Duration
	newDays int
	now     func() time.Time
}

// NewRegistration creates a whois-backed extractor
func NewRegistration(timeout time.Duration, newDays int) *Registration {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := whois.NewClient().SetTimeout(timeout)
	return &Registration{
		lookup: func(domain string) (string, error) {
			return client.Whois(domain)
		},
		timeout: timeout,
		newDays: newDays,
		now:     time.Now,
	}
}

// WithLookup replaces the whois transport
func (r *Registration) WithLookup(fn WhoisFunc) *Registration {
	r.lookup = fn
	return r
}

// Name returns the extractor name
func (r *Registration) Name() string { return "registration" }

// Keys returns the registration feature names
func (r *Registration) Keys() []string { return registrationKeys }

// Defaults reports an unknown domain age
func (r *Registration) Defaults() model.FeatureSet {
	return defaults(registrationKeys, model.FeatureSet{FeatDomainAgeDays: -1})
}

// Extract looks up the creation date of the URL's registrable domain
func (r *Registration) Extract(ctx context.Context, rawURL string, _ model.FetchResult) model.FeatureSet {
	parts := SplitDomain(parseURL(rawURL).Hostname())
	if parts.Registrable == "" {
		return r.Defaults()
	}

	type answer struct {
		days int
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		days, err := r.ageDays(parts.Registrable)
		ch <- answer{days, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return r.Defaults()
	case a := <-ch:
		if a.err != nil {
			return r.Defaults()
		}
		f := r.Defaults()
		f[FeatDomainAgeDays] = float64(a.days)
		f[FeatNewDomain] = boolFeature(r.newDays > 0 && a.days < r.newDays)
		return f
	}
}

// ageDays returns the number of days since the domain was created
func (r *Registration) ageDays(domain string) (int, error) {
	raw, err := r.lookup(domain)
	if err != nil {
		return 0, fmt.Errorf("whois %s: %w", domain, err)
	}

	info, err := whoisparser.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("parse whois %s: %w", domain, err)
	}
	if info.Domain == nil {
		return 0, fmt.Errorf("whois %s: no domain section", domain)
	}

	created, err := parseCreated(info.Domain.CreatedDate)
	if err != nil {
		return 0, err
	}

	days := int(r.now().Sub(created).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, nil
}

func parseCreated(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation date %q", s)
}
