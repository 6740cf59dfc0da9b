// Package filter turns the raw anchors discovered on a news front page into the
// absolute article URLs worth fetching.
package filter

import (
	"fmt"
	"net/url"
	"strings"
)

// Rules configures one site's filter.
type Rules struct {
	// BaseURL resolves relative links. Without it relative links are dropped.
	BaseURL string `mapstructure:"base_url"`
	// AllowPrefixes keeps only links starting with one of the prefixes. Empty
	// keeps every link.
	AllowPrefixes []string `mapstructure:"allow_prefixes"`
	// BlockList drops links equal to an entry, compared before resolution.
	BlockList []string `mapstructure:"block_list"`
	// BlockedDomains drops links whose host matches. "*.example.com" and
	// ".example.com" also match subdomains.
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

// Func is the shape the engine accepts for rewriting a site's links.
type Func func([]string) []string

// Filter applies Rules. It is immutable and safe for concurrent use.
type Filter struct {
	base          *url.URL
	allowPrefixes []string
	blockList     map[string]struct{}
	domains       *hostMatcher
}

// New validates rules and builds a Filter.
func New(rules Rules) (*Filter, error) {
	f := &Filter{
		blockList: make(map[string]struct{}, len(rules.BlockList)),
		domains:   newHostMatcher(rules.BlockedDomains),
	}
	if rules.BaseURL != "" {
		base, err := url.Parse(rules.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if !isHTTP(base.Scheme) || base.Host == "" {
			return nil, fmt.Errorf("base url %q must be an absolute http(s) url", rules.BaseURL)
		}
		f.base = base
	}
	for _, prefix := range rules.AllowPrefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			f.allowPrefixes = append(f.allowPrefixes, prefix)
		}
	}
	for _, blocked := range rules.BlockList {
		f.blockList[strings.TrimSpace(blocked)] = struct{}{}
	}
	return f, nil
}

// Apply returns the absolute http(s) URLs selected from links, without
// fragments, deduplicated in first-seen order. links is not modified.
func (f *Filter) Apply(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, raw := range links {
		link, ok := f.normalize(raw)
		if !ok {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

func (f *Filter) normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	if _, blocked := f.blockList[raw]; blocked {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if f.base == nil {
			return "", false
		}
		u = f.base.ResolveReference(u)
	}
	if !isHTTP(u.Scheme) || u.Host == "" {
		return "", false
	}
	if f.domains.Match(u.Hostname()) {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimSuffix(u.Host, defaultPort(u.Scheme))
	u.Fragment = ""
	u.RawFragment = ""
	link := u.String()

	if !f.allowed(link) {
		return "", false
	}
	return link, true
}

func (f *Filter) allowed(link string) bool {
	if len(f.allowPrefixes) == 0 {
		return true
	}
	for _, prefix := range f.allowPrefixes {
		if strings.HasPrefix(link, prefix) {
			return true
		}
	}
	return false
}

func isHTTP(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

func defaultPort(scheme string) string {
	if scheme == "https" {
		return ":443"
	}
	return ":80"
}
