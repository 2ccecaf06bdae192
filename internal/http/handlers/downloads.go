package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediadrop/internal/format"
)

type downloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
	Platform string `json:"platform"`
	Cookies  string `json:"cookies"`
}

// CreateDownload validates the request against live metadata, then starts an
// asynchronous job and returns its initial snapshot.
func (a *App) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if u, err := url.Parse(req.URL); req.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid http(s) url is required")
		return
	}
	if req.FormatID == "" {
		req.FormatID = "best"
	}

	ref, profile := a.Resolver.Resolve(r.Context(), req.URL, req.Platform)
	if req.Cookies != "" {
		profile.CookieHeader = req.Cookies
	}

	meta, err := a.Extractor.Extract(r.Context(), ref, profile)
	if err != nil {
		a.fail(w, err)
		return
	}

	selector := req.FormatID
	if selector != "best" {
		descriptors := format.Normalize(meta.Formats, meta.Duration, profile)
		d, ok := format.Find(descriptors, selector)
		if !ok {
			a.error(w, http.StatusUnprocessableEntity, "unsupported_format",
				"format "+selector+" is not available for this url")
			return
		}
		selector = d.Selector
	}

	job := a.Jobs.Start(ref, profile, selector)
	a.Jobs.AttachTitle(job.ID, meta.Title)
	job.Title = meta.Title
	a.json(w, http.StatusAccepted, job)
}

func (a *App) DownloadStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.Get(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// DownloadEvents streams job progress as server-sent events. Terminal state
// ends the stream; subscribers that arrive after the job finished still get
// the terminal event once.
func (a *App) DownloadEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, cancel, err := a.Jobs.Subscribe(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Type) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		case <-r.Context().Done():
			// The watcher went away; the job itself keeps running.
			return
		}
	}
}
