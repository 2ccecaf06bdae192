package platform

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// RedirectResolver expands short links (vm.tiktok.com, youtu.be redirects
// behind URL shorteners, ...) into their canonical target before the URL is
// handed to the extractor. Resolution failure is never an error: the best URL
// obtained so far is returned and the extractor fails loudly on its own if
// the URL is genuinely bad.
type RedirectResolver struct {
	client  *http.Client
	maxHops int
	logger  zerolog.Logger
}

// NewRedirectResolver builds a resolver that issues header-only requests and
// follows at most maxHops redirects within the given timeout.
func NewRedirectResolver(maxHops int, timeout time.Duration, logger zerolog.Logger) *RedirectResolver {
	if maxHops <= 0 {
		maxHops = 5
	}
	return &RedirectResolver{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Hops are followed manually so relative Locations and the
				// hop limit stay under our control.
				return http.ErrUseLastResponse
			},
		},
		maxHops: maxHops,
		logger:  logger.With().Str("component", "redirect").Logger(),
	}
}

// Resolve follows the redirect chain starting at rawURL and returns the last
// URL reached. On timeout, network error, malformed Location, or hop
// exhaustion it returns the best URL obtained so far.
func (r *RedirectResolver) Resolve(ctx context.Context, rawURL string) string {
	current := rawURL
	for hop := 0; hop < r.maxHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return current
		}
		req.Header.Set("User-Agent", defaultUserAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			r.logger.Debug().Err(err).Str("url", current).Msg("redirect probe failed")
			return current
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return current
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return current
		}
		next, err := resolveLocation(current, loc)
		if err != nil {
			return current
		}
		if next == current {
			// Self-redirect; bail out rather than spin.
			return current
		}
		current = next
	}
	return current
}

// resolveLocation normalizes a possibly relative Location header against the
// URL that produced it.
func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
