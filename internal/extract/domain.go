package extract

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DomainParts is a public-suffix-aware split of a hostname
type DomainParts struct {
	Host        string   // Lowercased hostname without port
	Registrable string   // eTLD+1, e.g. example.co.uk
	Suffix      string   // Public suffix, e.g. co.uk
	Label       string   // Registrable domain without its suffix, e.g. example
	Subdomains  []string // Labels left of the registrable domain, outermost first
	IP          bool     // Host is an IP literal
}

// SplitDomain splits host into subdomain labels and the registrable domain.
// IP literals, bare suffixes and empty hosts yield no registrable domain.
func SplitDomain(host string) DomainParts {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	parts := DomainParts{Host: host}
	if host == "" {
		return parts
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		parts.IP = true
		return parts
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return parts
	}
	suffix, _ := publicsuffix.PublicSuffix(host)

	parts.Registrable = registrable
	parts.Suffix = suffix
	parts.Label = strings.TrimSuffix(registrable, "."+suffix)

	if rest := strings.TrimSuffix(host, registrable); rest != "" {
		rest = strings.TrimSuffix(rest, ".")
		if rest != "" {
			parts.Subdomains = strings.Split(rest, ".")
		}
	}
	return parts
}

// RegistrableDomain returns the eTLD+1 of host, or the host itself when none exists
func RegistrableDomain(host string) string {
	parts := SplitDomain(host)
	if parts.Registrable != "" {
		return parts.Registrable
	}
	return parts.Host
}

// parseURL never fails: malformed input degrades to an empty URL
func parseURL(raw string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u == nil {
		return &url.URL{}
	}
	return u
}
