package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
)

// RawFormat is one encoding descriptor exactly as the extractor reports it.
// Fields are frequently absent or zero depending on the platform; the format
// normalizer is responsible for making sense of them.
type RawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
	VBR            float64 `json:"vbr"`
	ABR            float64 `json:"abr"`
	URL            string  `json:"url"`
	Protocol       string  `json:"protocol"`
}

// HasVideo reports whether the format carries a video track.
func (f RawFormat) HasVideo() bool {
	return f.Vcodec != "" && f.Vcodec != "none"
}

// HasAudio reports whether the format carries an audio track.
func (f RawFormat) HasAudio() bool {
	return f.Acodec != "" && f.Acodec != "none"
}

// Metadata is the single JSON document the extractor emits in metadata-only
// mode.
type Metadata struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  float64     `json:"duration"`
	Uploader  string      `json:"uploader"`
	Channel   string      `json:"channel"`
	ViewCount int64       `json:"view_count"`
	Ext       string      `json:"ext"`
	FormatID  string      `json:"format_id"`
	URL       string      `json:"url"`
	Formats   []RawFormat `json:"formats"`
}

// Client invokes the extractor in metadata-only mode. Upstream extractors
// fail transiently on first contact for some platforms, so Extract retries a
// small fixed number of times with linear backoff before giving up.
type Client struct {
	runner   Runner
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewClient builds a metadata client around the given runner.
func NewClient(runner Runner, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		runner:   runner,
		timeout:  timeout,
		attempts: 3,
		backoff:  2 * time.Second,
		logger:   logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract runs the extractor in metadata-only mode for the given reference
// and returns the parsed document. Neither the URL nor the profile is
// re-resolved between attempts.
func (c *Client) Extract(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile) (*Metadata, error) {
	args := MetadataArgs(ref, profile)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.runner.Run(attemptCtx, args...)
		cancel()
		if err == nil {
			meta := &Metadata{ViewCount: domain.UnknownCount}
			if jsonErr := json.Unmarshal(out, meta); jsonErr != nil {
				return nil, fmt.Errorf("%w: malformed metadata: %v", domain.ErrExtractionFailed, jsonErr)
			}
			return meta, nil
		}

		lastErr = err
		c.logger.Warn().Err(err).
			Str("url", ref.CanonicalURL).
			Int("attempt", attempt).
			Msg("metadata extraction attempt failed")

		// Auth conditions never heal on retry.
		if classified := Classify(err); errors.Is(classified, domain.ErrAuthRequired) {
			return nil, classified
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrPreviewFailed, Classify(lastErr))
}

// BuildPreview assembles the user-facing preview from extractor metadata,
// degrading missing fields to explicit sentinels. bestSize is the caller's
// best-effort total size for the top-ranked encoding; zero means unknown.
func BuildPreview(meta *Metadata, bestSize int64) domain.MediaPreview {
	p := domain.MediaPreview{
		Title:           meta.Title,
		ThumbnailURL:    meta.Thumbnail,
		DurationSeconds: int(meta.Duration),
		Uploader:        meta.Uploader,
		ViewCount:       meta.ViewCount,
		TotalSize:       bestSize,
	}
	if p.Title == "" {
		p.Title = domain.UnknownField
	}
	if p.ThumbnailURL == "" {
		p.ThumbnailURL = domain.UnknownField
	}
	if p.Uploader == "" {
		if meta.Channel != "" {
			p.Uploader = meta.Channel
		} else {
			p.Uploader = domain.UnknownField
		}
	}
	if p.ViewCount < 0 {
		p.ViewCount = domain.UnknownCount
	}
	return p
}

// Classify maps raw extractor failures onto the domain error taxonomy by
// inspecting the diagnostic text the subprocess left on stderr.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "login required"),
		strings.Contains(msg, "sign in to confirm"),
		strings.Contains(msg, "requested content is not available, rate-limit"),
		strings.Contains(msg, "use --cookies"),
		strings.Contains(msg, "http error 401"),
		strings.Contains(msg, "http error 403"):
		return fmt.Errorf("%w: %v", domain.ErrAuthRequired, err)
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "context deadline exceeded"):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
}
