package browser

import (
	"fmt"

	"github.com/gobwas/glob"
)

// URLPolicy decides which URLs sessions may navigate to. Patterns are globs
// matched against the full URL, so "https://*.example.com/*" covers every
// page on every subdomain.
type URLPolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewURLPolicy compiles the allow and deny lists.
func NewURLPolicy(allowed, denied []string) (*URLPolicy, error) {
	p := &URLPolicy{}
	for _, pattern := range allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed url pattern %q: %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}
	for _, pattern := range denied {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied url pattern %q: %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}
	return p, nil
}

// Allows reports whether url may be opened. Deny rules win; an empty allow
// list allows everything not denied. about:blank is always allowed.
func (p *URLPolicy) Allows(url string) bool {
	if p == nil || url == BlankURL {
		return true
	}
	for _, g := range p.denied {
		if g.Match(url) {
			return false
		}
	}
	if len(p.allowed) == 0 {
		return true
	}
	for _, g := range p.allowed {
		if g.Match(url) {
			return true
		}
	}
	return false
}
