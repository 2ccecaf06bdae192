package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mediadrop/internal/http/handlers"
	"mediadrop/internal/infra"
	mw "mediadrop/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(logger),
	)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/stats", app.Stats)

		// Everything that spawns extractor work is rate limited; health and
		// stats probes are not.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(cfg.RateLimitPerMin, time.Minute))

			r.Get("/preview", app.Preview)
			r.Get("/formats", app.Formats)

			r.Route("/downloads", func(r chi.Router) {
				r.Post("/", app.CreateDownload)
				r.Get("/{id}", app.DownloadStatus)
				r.Get("/{id}/events", app.DownloadEvents)
			})

			r.Get("/stream", app.Stream)
			r.Get("/files/{name}", app.File)
		})
	})

	return r
}
