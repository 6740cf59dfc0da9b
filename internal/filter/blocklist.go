package filter

import (
	"slices"
	"strings"
)

// hostMatcher matches hostnames against exact names and parent domains.
type hostMatcher struct {
	hosts   map[string]struct{}
	parents []string
}

// newHostMatcher compiles patterns. "*.x.com" and ".x.com" match x.com and all
// of its subdomains; anything else matches one host. It returns nil when no
// usable pattern is given.
func newHostMatcher(patterns []string) *hostMatcher {
	m := &hostMatcher{hosts: make(map[string]struct{})}
	for _, raw := range patterns {
		p := strings.ToLower(strings.TrimSpace(raw))
		p = strings.TrimPrefix(p, "*")
		if parent, ok := strings.CutPrefix(p, "."); ok {
			if parent != "" && !slices.Contains(m.parents, parent) {
				m.parents = append(m.parents, parent)
			}
			continue
		}
		if p != "" {
			m.hosts[p] = struct{}{}
		}
	}
	if len(m.hosts) == 0 && len(m.parents) == 0 {
		return nil
	}
	return m
}

// Match reports whether host is covered. A nil matcher matches nothing.
func (m *hostMatcher) Match(host string) bool {
	if m == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	if _, ok := m.hosts[host]; ok {
		return true
	}
	return slices.ContainsFunc(m.parents, func(parent string) bool {
		return host == parent || strings.HasSuffix(host, "."+parent)
	})
}
