package platform

import (
	"net/url"
	"strings"

	"mediadrop/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Rule binds a set of host suffixes to a platform profile. Rules are checked
// in registration order; the first match wins.
type Rule struct {
	Hosts   []string
	Profile domain.PlatformProfile
}

// Registry resolves a canonical URL to exactly one platform profile. It
// replaces scattered per-function host checks with a single ordered lookup.
type Registry struct {
	rules    []Rule
	fallback domain.PlatformProfile
}

// Overrides carries per-platform proxy and cookie-file settings from the
// environment, keyed by platform tag.
type Overrides struct {
	Proxy   map[string]string
	Cookies map[string]string

	// DefaultProxy applies to every profile without a per-tag proxy.
	DefaultProxy string
}

// NewRegistry builds a registry with the built-in platform rules and applies
// any per-platform overrides on top of them.
func NewRegistry(ov Overrides) *Registry {
	r := &Registry{
		fallback: domain.PlatformProfile{
			Tag:       "generic",
			UserAgent: defaultUserAgent,
		},
	}

	r.Register(Rule{
		Hosts: []string{"youtube.com", "youtu.be", "music.youtube.com"},
		Profile: domain.PlatformProfile{
			Tag:           "youtube",
			UserAgent:     defaultUserAgent,
			ExtractorArgs: []string{"youtube:player_client=android,web"},
		},
	})
	r.Register(Rule{
		Hosts: []string{"tiktok.com", "vm.tiktok.com", "vt.tiktok.com"},
		Profile: domain.PlatformProfile{
			Tag:       "tiktok",
			UserAgent: defaultUserAgent,
			Referer:   "https://www.tiktok.com/",
		},
	})
	r.Register(Rule{
		Hosts: []string{"instagram.com"},
		Profile: domain.PlatformProfile{
			Tag:       "instagram",
			UserAgent: defaultUserAgent,
			Referer:   "https://www.instagram.com/",
		},
	})
	r.Register(Rule{
		Hosts: []string{"facebook.com", "fb.watch"},
		Profile: domain.PlatformProfile{
			Tag:       "facebook",
			UserAgent: defaultUserAgent,
			Referer:   "https://www.facebook.com/",
		},
	})
	r.Register(Rule{
		Hosts: []string{"twitter.com", "x.com"},
		Profile: domain.PlatformProfile{
			Tag:       "twitter",
			UserAgent: defaultUserAgent,
		},
	})
	r.Register(Rule{
		Hosts: []string{"soundcloud.com"},
		Profile: domain.PlatformProfile{
			Tag:       "soundcloud",
			UserAgent: defaultUserAgent,
			AudioOnly: true,
		},
	})

	r.applyOverrides(ov)
	return r
}

// Register appends a rule. New platforms plug in here without touching any
// call site.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Resolve maps a canonical URL to its platform profile. It never fails: URLs
// that match no rule get the generic fallback profile.
func (r *Registry) Resolve(canonicalURL string) domain.PlatformProfile {
	u, err := url.Parse(canonicalURL)
	if err != nil || u.Host == "" {
		return r.fallback
	}
	host := strings.ToLower(u.Hostname())
	for _, rule := range r.rules {
		for _, h := range rule.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return rule.Profile
			}
		}
	}
	return r.fallback
}

// ResolveTag returns the profile registered under the given tag, falling back
// to the generic profile for unknown tags. Used for per-request platform
// hints.
func (r *Registry) ResolveTag(tag string) domain.PlatformProfile {
	for _, rule := range r.rules {
		if rule.Profile.Tag == tag {
			return rule.Profile
		}
	}
	return r.fallback
}

func (r *Registry) applyOverrides(ov Overrides) {
	apply := func(p *domain.PlatformProfile) {
		if proxy, ok := ov.Proxy[p.Tag]; ok {
			p.Proxy = proxy
		} else if ov.DefaultProxy != "" {
			p.Proxy = ov.DefaultProxy
		}
		if cookies, ok := ov.Cookies[p.Tag]; ok {
			p.CookiesFile = cookies
		}
	}
	for i := range r.rules {
		apply(&r.rules[i].Profile)
	}
	apply(&r.fallback)
}
