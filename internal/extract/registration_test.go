package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/phishlens/internal/model"
)

const exampleWhois = `Domain Name: EXAMPLE.COM
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.iana.org
Registrar URL: http://res-dom.iana.org
Updated Date: 2024-08-14T07:01:34Z
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2025-08-13T04:00:00Z
Registrar: RESERVED-Internet Assigned Numbers Authority
Registrar IANA ID: 376
Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
DNSSEC: signedDelegation
`

func TestRegistration_DomainAge(t *testing.T) {
	var asked string
	r := NewRegistration(time.Second, 180).WithLookup(func(domain string) (string, error) {
		asked = domain
		return exampleWhois, nil
	})
	r.now = func() time.Time { return time.Date(1995, 8, 24, 4, 0, 0, 0, time.UTC) }

	f := r.Extract(context.Background(), "https://login.secure.example.com/path", model.FetchResult{})

	if asked != "example.com" {
		t.Errorf("expected lookup of registrable domain, got %q", asked)
	}
	if f[FeatDomainAgeDays] != 10 {
		t.Errorf("expected age 10 days, got %v", f[FeatDomainAgeDays])
	}
	if f[FeatNewDomain] != 1 {
		t.Errorf("expected NewDomain=1, got %v", f[FeatNewDomain])
	}
}

func TestRegistration_UnknownAge(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		lookup WhoisFunc
	}{
		{"lookup error", "https://example.com/", func(string) (string, error) { return "", errors.New("connection refused") }},
		{"no registrable domain", "http://10.0.0.1/", func(string) (string, error) { return exampleWhois, nil }},
		{"unparseable record", "https://example.com/", func(string) (string, error) { return "garbage", nil }},
		{"slow lookup", "https://example.com/", func(string) (string, error) {
			time.Sleep(200 * time.Millisecond)
			return exampleWhois, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistration(50*time.Millisecond, 180).WithLookup(tt.lookup)
			f := r.Extract(context.Background(), tt.url, model.FetchResult{})
			if f[FeatDomainAgeDays] != -1 || f[FeatNewDomain] != 0 {
				t.Errorf("expected unknown age, got %v", f)
			}
		})
	}
}

func TestParseCreated(t *testing.T) {
	for _, s := range []string{"1995-08-14T04:00:00Z", "1995-08-14", "14-Aug-1995", "1995.08.14", "1995-08-14 04:00:00"} {
		got, err := parseCreated(s)
		if err != nil {
			t.Errorf("%q: %v", s, err)
			continue
		}
		if got.Year() != 1995 || got.Month() != time.August || got.Day() != 14 {
			t.Errorf("%q parsed as %v", s, got)
		}
	}
	if _, err := parseCreated("someday"); err == nil {
		t.Error("expected error for unknown layout")
	}
}
