package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
	"mediadrop/internal/format"
)

// mediaQuery is the parameter triple shared by the preview, formats, and
// stream endpoints.
type mediaQuery struct {
	url      string
	platform string
	cookies  string
}

func parseMediaQuery(r *http.Request) (mediaQuery, bool) {
	q := mediaQuery{
		url:      strings.TrimSpace(r.URL.Query().Get("url")),
		platform: strings.TrimSpace(r.URL.Query().Get("platform")),
		cookies:  strings.TrimSpace(r.URL.Query().Get("cookies")),
	}
	if q.url == "" {
		return q, false
	}
	u, err := url.Parse(q.url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return q, false
	}
	return q, true
}

// resolveQuery runs the resolution pipeline for a query, applying the
// per-request cookie header on top of the platform profile.
func (a *App) resolveQuery(r *http.Request, q mediaQuery) (domain.MediaReference, domain.PlatformProfile) {
	ref, profile := a.Resolver.Resolve(r.Context(), q.url, q.platform)
	if q.cookies != "" {
		profile.CookieHeader = q.cookies
	}
	return ref, profile
}

func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	q, ok := parseMediaQuery(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid http(s) url parameter is required")
		return
	}
	ref, profile := a.resolveQuery(r, q)

	meta, err := a.Extractor.Extract(r.Context(), ref, profile)
	if err != nil {
		a.fail(w, err)
		return
	}
	descriptors := format.Normalize(meta.Formats, meta.Duration, profile)
	a.json(w, http.StatusOK, extractor.BuildPreview(meta, format.BestSize(descriptors)))
}

func (a *App) Formats(w http.ResponseWriter, r *http.Request) {
	q, ok := parseMediaQuery(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid http(s) url parameter is required")
		return
	}
	ref, profile := a.resolveQuery(r, q)

	meta, err := a.Extractor.Extract(r.Context(), ref, profile)
	if err != nil {
		a.fail(w, err)
		return
	}
	descriptors := format.Normalize(meta.Formats, meta.Duration, profile)
	a.json(w, http.StatusOK, map[string]any{
		"url":     ref.CanonicalURL,
		"title":   meta.Title,
		"formats": descriptors,
	})
}
