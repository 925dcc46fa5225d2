package capability

import "strings"

// Rule is a single capability's allow/budget entry within a Policy.
type Rule struct {
	Allow  bool   `json:"allow"`
	Budget uint64 `json:"budget"` // 0 means unlimited
}

// NetPolicy constrains NetFetch calls beyond the generic allow/budget
// rule (spec.md §6).
type NetPolicy struct {
	AllowedDomains   []string `json:"allowed_domains"`
	AllowedMethods   []string `json:"allowed_methods"`
	TimeoutMs        int      `json:"timeout_ms"`
	MaxResponseBytes int64    `json:"max_response_bytes"`
	AllowRedirects   bool     `json:"allow_redirects"`
}

// Policy is the per-capability rule set a Gateway enforces.
type Policy struct {
	Rules     map[string]Rule `json:"rules"`
	NetPolicy *NetPolicy      `json:"net_policy,omitempty"`
}

// AllowAll constructs a Policy permitting every known capability with
// no budget limit.
func AllowAll() *Policy {
	p := &Policy{Rules: make(map[string]Rule)}
	for name := range byName {
		p.Rules[name] = Rule{Allow: true, Budget: 0}
	}
	return p
}

// DenyAll constructs a Policy rejecting every capability. This is the
// policy the framework runtime installs during update()/view() calls
// to enforce purity (spec.md §4.5).
func DenyAll() *Policy {
	p := &Policy{Rules: make(map[string]Rule)}
	for name := range byName {
		p.Rules[name] = Rule{Allow: false}
	}
	return p
}

// Rule looks up the rule for a capability by name; absent rules deny.
func (p *Policy) Rule(name string) Rule {
	if p == nil || p.Rules == nil {
		return Rule{Allow: false}
	}
	r, ok := p.Rules[name]
	if !ok {
		return Rule{Allow: false}
	}
	return r
}

// DomainAllowed reports whether host matches the NetPolicy's domain
// allowlist. An empty list allows all (spec.md §6); "*.suffix" entries
// match any subdomain of suffix.
func (np *NetPolicy) DomainAllowed(host string) bool {
	if np == nil || len(np.AllowedDomains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, pattern := range np.AllowedDomains {
		pattern = strings.ToLower(pattern)
		if strings.HasPrefix(pattern, "*.") {
			suffix := pattern[1:] // keep leading "."
			if strings.HasSuffix(host, suffix) || host == pattern[2:] {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

// MethodAllowed reports whether method is permitted; empty list
// allows all, comparison is case-insensitive (spec.md §6).
func (np *NetPolicy) MethodAllowed(method string) bool {
	if np == nil || len(np.AllowedMethods) == 0 {
		return true
	}
	method = strings.ToUpper(method)
	for _, m := range np.AllowedMethods {
		if strings.ToUpper(m) == method {
			return true
		}
	}
	return false
}
