package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// domainPolicyFile is the on-disk shape of domain_quality.yaml
type domainPolicyFile struct {
	Allowlist     []string            `yaml:"allowlist"`
	Blacklist     []string            `yaml:"blacklist"`
	BrandPriority map[string][]string `yaml:"brand_priority"`
}

// DomainPolicy holds the allow-list, blacklist and brand-priority map.
// Entries match a host exactly or at a label boundary, so "gov" matches
// "cdc.gov" and "medium.com" matches "blog.medium.com".
// A DomainPolicy is immutable once built; accessors return copies.
type DomainPolicy struct {
	allowlist []string
	blacklist []string
	brands    map[string]map[string]struct{}
}

var (
	defaultAllowlist = []string{"gov", "edu", "who.int", "un.org"}
	defaultBlacklist = []string{
		"blogspot.com", "medium.com", "reddit.com", "quora.com",
		"pinterest.com", "youtube.com", "amazon.com", "aliexpress.com",
	}
)

// DefaultDomainPolicy returns the built-in lists with an empty brand map
func DefaultDomainPolicy() *DomainPolicy {
	return NewDomainPolicy(defaultAllowlist, defaultBlacklist, nil)
}

// NewDomainPolicy builds a policy from plain lists. Inputs are copied and
// normalised to lower case without a leading dot.
func NewDomainPolicy(allowlist, blacklist []string, brandPriority map[string][]string) *DomainPolicy {
	p := &DomainPolicy{
		allowlist: normaliseDomains(allowlist),
		blacklist: normaliseDomains(blacklist),
		brands:    make(map[string]map[string]struct{}, len(brandPriority)),
	}
	for phrase, domains := range brandPriority {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" {
			continue
		}
		set := p.brands[key]
		if set == nil {
			set = make(map[string]struct{})
			p.brands[key] = set
		}
		for _, d := range normaliseDomains(domains) {
			set[d] = struct{}{}
		}
	}
	return p
}

// LoadDomainPolicy reads a YAML policy file. A missing or unreadable file
// falls back to DefaultDomainPolicy with a warning; a malformed one is an error.
func LoadDomainPolicy(path string, logger *zap.Logger) (*DomainPolicy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Domain policy not loaded, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return DefaultDomainPolicy(), nil
	}

	var f domainPolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse domain policy %s: %w", path, err)
	}
	if f.Allowlist == nil {
		f.Allowlist = defaultAllowlist
	}
	if f.Blacklist == nil {
		f.Blacklist = defaultBlacklist
	}

	p := NewDomainPolicy(f.Allowlist, f.Blacklist, f.BrandPriority)
	logger.Info("Domain policy loaded",
		zap.String("path", path),
		zap.Int("allowlist", len(p.allowlist)),
		zap.Int("blacklist", len(p.blacklist)),
		zap.Int("brand_phrases", len(p.brands)),
	)
	return p, nil
}

// Allowlist returns the allow-listed domains and TLDs in configured order
func (p *DomainPolicy) Allowlist() []string {
	return append([]string(nil), p.allowlist...)
}

// Blacklist returns the blacklisted domains in configured order
func (p *DomainPolicy) Blacklist() []string {
	return append([]string(nil), p.blacklist...)
}

func (p *DomainPolicy) IsAllowlisted(host string) bool {
	return matchAny(host, p.allowlist)
}

func (p *DomainPolicy) IsBlacklisted(host string) bool {
	return matchAny(host, p.blacklist)
}

// IsBrand reports whether host is a priority domain for phrase
func (p *DomainPolicy) IsBrand(phrase, host string) bool {
	set := p.brands[strings.ToLower(strings.TrimSpace(phrase))]
	if len(set) == 0 {
		return false
	}
	host = strings.ToLower(host)
	if _, ok := set[host]; ok {
		return true
	}
	for d := range set {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// domainMatches is an exact match or a match at a label boundary
func domainMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func matchAny(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, p := range patterns {
		if domainMatches(host, p) {
			return true
		}
	}
	return false
}

func normaliseDomains(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, ".")
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
