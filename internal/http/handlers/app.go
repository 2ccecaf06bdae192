package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
	"mediadrop/internal/jobs"
	"mediadrop/internal/storage"
)

// Resolver canonicalizes a raw URL and picks its platform profile.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, tagHint string) (domain.MediaReference, domain.PlatformProfile)
}

// Extractor fetches media metadata.
type Extractor interface {
	Extract(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile) (*extractor.Metadata, error)
}

// JobService is the download job surface the handlers drive.
type JobService interface {
	Start(ref domain.MediaReference, profile domain.PlatformProfile, selector string) domain.Job
	Get(id string) (domain.Job, error)
	Subscribe(id string) (<-chan domain.ProgressEvent, func(), error)
	AttachTitle(id, title string)
	Stats() jobs.Stats
}

// Streamer relays media bytes directly to a response.
type Streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, ref domain.MediaReference, profile domain.PlatformProfile, selector string, onMeta func(*extractor.Metadata)) error
}

type App struct {
	Resolver  Resolver
	Extractor Extractor
	Jobs      JobService
	Streamer  Streamer
	Files     *storage.FileStore
	Logger    zerolog.Logger
}

func NewApp(resolver Resolver, ext Extractor, jobSvc JobService, streamer Streamer, files *storage.FileStore, logger zerolog.Logger) *App {
	return &App{
		Resolver:  resolver,
		Extractor: ext,
		Jobs:      jobSvc,
		Streamer:  streamer,
		Files:     files,
		Logger:    logger.With().Str("component", "http").Logger(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// fail maps a domain error onto the wire taxonomy.
func (a *App) fail(w http.ResponseWriter, err error) {
	status, code := errStatus(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("request failed")
	}
	a.error(w, status, code, err.Error())
}

func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized, "auth_required"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "unsupported_format"
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrPreviewFailed):
		return http.StatusBadGateway, "preview_failed"
	case errors.Is(err, domain.ErrExtractionFailed):
		return http.StatusBadGateway, "extraction_failed"
	case errors.Is(err, domain.ErrOutputMissing):
		return http.StatusInternalServerError, "output_missing"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
