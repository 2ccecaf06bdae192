package platform

import (
	"context"
	"net/url"
	"strings"

	"mediadrop/internal/domain"
)

// shortlinkHosts are hosts that only ever serve redirects to the real media
// page. Anything else that matches a platform rule is already canonical and
// is not probed, keeping request latency down.
var shortlinkHosts = map[string]struct{}{
	"vm.tiktok.com": {},
	"vt.tiktok.com": {},
	"fb.watch":      {},
	"t.co":          {},
	"bit.ly":        {},
	"tinyurl.com":   {},
	"pin.it":        {},
}

// Resolver turns a raw user-supplied URL into a canonical media reference and
// the platform profile that governs how the extractor talks to that platform.
type Resolver struct {
	registry  *Registry
	redirects *RedirectResolver
}

// NewResolver composes the profile registry with the redirect resolver.
func NewResolver(registry *Registry, redirects *RedirectResolver) *Resolver {
	return &Resolver{registry: registry, redirects: redirects}
}

// Resolve canonicalizes rawURL and picks its profile. A non-empty tagHint
// forces the profile regardless of the host, for callers that already know
// the platform. Resolution never fails; unexpandable URLs pass through
// unchanged and unrecognized hosts get the generic profile.
func (r *Resolver) Resolve(ctx context.Context, rawURL, tagHint string) (domain.MediaReference, domain.PlatformProfile) {
	canonical := rawURL
	if needsExpansion(rawURL, r.registry) {
		canonical = r.redirects.Resolve(ctx, rawURL)
	}

	var profile domain.PlatformProfile
	if tagHint != "" {
		profile = r.registry.ResolveTag(tagHint)
	} else {
		profile = r.registry.Resolve(canonical)
	}

	return domain.MediaReference{
		InputURL:     rawURL,
		CanonicalURL: canonical,
		PlatformTag:  profile.Tag,
	}, profile
}

// needsExpansion reports whether the URL is worth a redirect probe: known
// shortener hosts always are, and so are hosts no platform rule recognizes,
// since those may be shorteners we have never seen.
func needsExpansion(rawURL string, registry *Registry) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := shortlinkHosts[host]; ok {
		return true
	}
	return registry.Resolve(rawURL).Tag == "generic"
}
