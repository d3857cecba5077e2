package engine

import (
	"net/url"
	"os"
	"strings"

	"github.com/gwlsn/fetchray/internal/config"
)

// CookieRule maps a site domain to a cookie file.
type CookieRule struct {
	Domain string
	File   string
}

// CookieJar picks authentication material for a URL.
type CookieJar struct {
	rules []CookieRule
}

// NewCookieJar creates a jar from rules; earlier rules win.
func NewCookieJar(rules []CookieRule) *CookieJar {
	return &CookieJar{rules: rules}
}

// CookieJarFromConfig builds a jar from the configured sites. Relative cookie
// files resolve against the data dir.
func CookieJarFromConfig(cfg *config.Config) *CookieJar {
	rules := make([]CookieRule, 0, len(cfg.Cookies))
	for _, c := range cfg.Cookies {
		rules = append(rules, CookieRule{Domain: c.Domain, File: cfg.ResolveDataPath(c.File)})
	}
	return NewCookieJar(rules)
}

// FileFor returns the cookie file for rawURL, or "" when no rule matches the
// host or the matching file does not exist on disk.
func (j *CookieJar) FileFor(rawURL string) string {
	if j == nil {
		return ""
	}
	host := hostOf(rawURL)
	if host == "" {
		return ""
	}
	for _, r := range j.rules {
		if !matchDomain(host, r.Domain) {
			continue
		}
		if info, err := os.Stat(r.File); err == nil && info.Mode().IsRegular() {
			return r.File
		}
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchDomain reports whether host is domain or a subdomain of it.
func matchDomain(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
