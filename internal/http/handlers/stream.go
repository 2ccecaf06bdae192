package handlers

import (
	"net/http"
	"strings"
)

// Stream relays the selected encoding straight to the client without an
// intermediate job. The relay commits headers itself; an error here means
// nothing has been written yet.
func (a *App) Stream(w http.ResponseWriter, r *http.Request) {
	q, ok := parseMediaQuery(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid http(s) url parameter is required")
		return
	}
	selector := strings.TrimSpace(r.URL.Query().Get("format_id"))
	if selector == "" {
		selector = "best"
	}
	ref, profile := a.resolveQuery(r, q)

	if err := a.Streamer.Stream(r.Context(), w, ref, profile, selector, nil); err != nil {
		a.fail(w, err)
	}
}
