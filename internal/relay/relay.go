// Package relay delivers media bytes to a waiting HTTP client, either by
// proxying a direct upstream URL or by piping the extractor's stdout, never
// holding the full payload in memory.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
)

const (
	// headerWait bounds how long the relay waits for concurrent metadata
	// before committing fallback response headers.
	headerWait = 3 * time.Second

	proxyRedirectLimit = 5
)

// Extractor resolves metadata for a reference.
type Extractor interface {
	Extract(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile) (*extractor.Metadata, error)
}

// Streamer is the supervisor surface the relay drives.
type Streamer interface {
	RunToStdout(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile, selector string, sink io.Writer) (int64, error)
	RunToFile(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile, selector, dir, base string) <-chan domain.ProgressEvent
}

// Relay streams one media item per call.
type Relay struct {
	extract     Extractor
	streamer    Streamer
	client      *http.Client
	mergeFirst  bool
	tempDir     string
	logger      zerolog.Logger
}

// New builds a relay. When mergeFirst is set, component-pair selectors are
// downloaded and merged to a temporary file before streaming, for
// environments where the extractor cannot merge over a pipe.
func New(extract Extractor, streamer Streamer, mergeFirst bool, tempDir string, logger zerolog.Logger) *Relay {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Relay{
		extract:  extract,
		streamer: streamer,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= proxyRedirectLimit {
					return fmt.Errorf("stopped after %d redirects", proxyRedirectLimit)
				}
				return nil
			},
		},
		mergeFirst: mergeFirst,
		tempDir:    tempDir,
		logger:     logger.With().Str("component", "relay").Logger(),
	}
}

// Stream delivers the selected encoding to w. Response headers are committed
// before the first payload byte and never change afterwards. Any returned
// error is guaranteed to precede the commit, so the handler may still map it
// to a status code; failures after the commit terminate the connection and
// return nil. Cancelling ctx (client disconnect) tears down the upstream
// work.
func (r *Relay) Stream(ctx context.Context, w http.ResponseWriter, ref domain.MediaReference, profile domain.PlatformProfile, selector string, onMeta func(*extractor.Metadata)) error {
	type result struct {
		meta *extractor.Metadata
		err  error
	}
	metaCh := make(chan result, 1)
	go func() {
		meta, err := r.extract.Extract(ctx, ref, profile)
		if err == nil && onMeta != nil {
			onMeta(meta)
		}
		metaCh <- result{meta, err}
	}()

	// Metadata usually resolves fast and tells us the filename, the direct
	// URL, and whether the target is reachable at all. Past headerWait the
	// stream starts anyway with a non-identifying fallback name.
	var meta *extractor.Metadata
	select {
	case res := <-metaCh:
		if res.err != nil {
			return res.err
		}
		meta = res.meta
	case <-time.After(headerWait):
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}

	if r.mergeFirst && strings.Contains(selector, "+") {
		return r.streamMerged(ctx, w, ref, profile, selector, meta)
	}

	if meta != nil {
		if direct := directURL(meta, selector); direct != "" {
			if done, err := r.proxyDirect(ctx, w, profile, direct, meta, selector); done {
				return err
			}
			// Upstream refused; the subprocess path can still work.
		}
	}
	return r.pipeSubprocess(ctx, w, ref, profile, selector, meta)
}

// proxyDirect re-streams a direct media URL. done is false when the upstream
// response was unusable and nothing has been committed yet.
func (r *Relay) proxyDirect(ctx context.Context, w http.ResponseWriter, profile domain.PlatformProfile, rawURL string, meta *extractor.Metadata, selector string) (done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, nil
	}
	if profile.UserAgent != "" {
		req.Header.Set("User-Agent", profile.UserAgent)
	}
	if profile.Referer != "" {
		req.Header.Set("Referer", profile.Referer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Msg("direct proxy fetch failed, falling back to subprocess")
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		r.logger.Debug().Int("status", resp.StatusCode).Msg("direct proxy refused, falling back to subprocess")
		return false, nil
	}
	defer resp.Body.Close()

	if w.Header().Get("Content-Type") == "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
	}
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	setDisposition(w, meta, selector)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(flushWriter{w}, resp.Body); err != nil {
		// Mid-stream failure or client disconnect: the status is already
		// committed, closing the connection is the only signal left.
		r.logger.Warn().Err(err).Msg("direct proxy stream aborted")
	}
	return true, nil
}

// pipeSubprocess streams the extractor's stdout straight to the client.
func (r *Relay) pipeSubprocess(ctx context.Context, w http.ResponseWriter, ref domain.MediaReference, profile domain.PlatformProfile, selector string, meta *extractor.Metadata) error {
	setDisposition(w, meta, selector)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentType(meta, selector))
	}
	w.WriteHeader(http.StatusOK)

	written, err := r.streamer.RunToStdout(ctx, ref, profile, selector, flushWriter{w})
	if err != nil {
		// Headers are committed; log and terminate. The abrupt close is the
		// client's failure signal.
		r.logger.Warn().Err(err).Int64("written", written).
			Str("url", ref.CanonicalURL).Msg("subprocess stream aborted")
	}
	return nil
}

// streamMerged downloads and merges a component pair to a temporary file,
// then streams that file. The temp artifact is removed on every exit path.
func (r *Relay) streamMerged(ctx context.Context, w http.ResponseWriter, ref domain.MediaReference, profile domain.PlatformProfile, selector string, meta *extractor.Metadata) error {
	base := "merge-" + uuid.NewString()
	defer func() {
		if matches, _ := filepath.Glob(filepath.Join(r.tempDir, base+".*")); matches != nil {
			for _, m := range matches {
				os.Remove(m)
			}
		}
	}()

	var path string
	for ev := range r.streamer.RunToFile(ctx, ref, profile, selector, r.tempDir, base) {
		switch ev.Type {
		case domain.EventCompleted:
			path = ev.FilePath
		case domain.EventError:
			return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, ev.Error)
		}
	}
	if path == "" {
		return domain.ErrOutputMissing
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutputMissing, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	setDisposition(w, meta, selector)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentType(meta, selector))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(flushWriter{w}, f); err != nil {
		r.logger.Warn().Err(err).Msg("merged stream aborted")
	}
	return nil
}

// directURL finds a fetchable plain-HTTP URL for the selector, if the
// extractor reported one. Component pairs never have one.
func directURL(meta *extractor.Metadata, selector string) string {
	if strings.Contains(selector, "+") {
		return ""
	}
	for _, f := range meta.Formats {
		if f.FormatID != selector {
			continue
		}
		if f.URL != "" && (f.Protocol == "" || f.Protocol == "http" || f.Protocol == "https") {
			return f.URL
		}
		return ""
	}
	// Some platforms report the resolved URL only at the top level.
	if meta.FormatID == selector || selector == "best" {
		return meta.URL
	}
	return ""
}

// setDisposition commits the download filename. When the real title is not
// known yet a non-identifying fallback is used; headers cannot change once
// the body starts.
func setDisposition(w http.ResponseWriter, meta *extractor.Metadata, selector string) {
	if w.Header().Get("Content-Disposition") != "" {
		return
	}
	name := fallbackFilename(selector)
	if meta != nil && meta.Title != "" {
		name = sanitizeFilename(meta.Title) + "." + extFor(meta, selector)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func fallbackFilename(selector string) string {
	ext := "mp4"
	if strings.HasPrefix(selector, "bestaudio") {
		ext = "m4a"
	}
	return fmt.Sprintf("download-%d.%s", time.Now().Unix(), ext)
}

func extFor(meta *extractor.Metadata, selector string) string {
	for _, f := range meta.Formats {
		if f.FormatID == selector && f.Ext != "" {
			return f.Ext
		}
	}
	if meta.Ext != "" {
		return meta.Ext
	}
	return "mp4"
}

func contentType(meta *extractor.Metadata, selector string) string {
	ext := "mp4"
	if meta != nil {
		ext = extFor(meta, selector)
	}
	switch ext {
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "webm":
		return "video/webm"
	case "opus", "ogg":
		return "audio/ogg"
	case "mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}

// sanitizeFilename strips characters that break a Content-Disposition header
// or a filesystem path.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		`"`, "", "/", "-", `\`, "-", ":", "-", "*", "", "?", "",
		"<", "", ">", "", "|", "-", "\n", " ", "\r", " ",
	)
	out := strings.TrimSpace(replacer.Replace(name))
	if out == "" {
		return "download"
	}
	const maxLen = 120
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// flushWriter pushes each chunk to the client immediately so playback can
// begin while the download is still running.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
