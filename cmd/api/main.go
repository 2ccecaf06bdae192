package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediadrop/internal/cache"
	"mediadrop/internal/extractor"
	"mediadrop/internal/http/handlers"
	httpapi "mediadrop/internal/http/httpapi"
	"mediadrop/internal/infra"
	"mediadrop/internal/jobs"
	"mediadrop/internal/platform"
	"mediadrop/internal/relay"
	"mediadrop/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.DownloadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare download directory")
	}

	// Resolution pipeline: profile rules plus redirect expansion.
	registry := platform.NewRegistry(platform.Overrides{
		Proxy:        cfg.PlatformProxies,
		Cookies:      cfg.PlatformCookies,
		DefaultProxy: cfg.ProxyURL,
	})
	redirects := platform.NewRedirectResolver(cfg.MaxRedirectHops, 10*time.Second, logger)
	resolver := platform.NewResolver(registry, redirects)

	// Extraction stack: one runner shared by metadata and download modes.
	runner := extractor.NewRunner(cfg.ExtractorPath)
	client := extractor.NewClient(runner, cfg.MetadataTimeout, logger)
	supervisor := extractor.NewSupervisor(runner, cfg.DownloadTimeout, logger)

	rdb := cache.Connect(cfg.RedisAddr, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	metaCache := cache.New(rdb, cfg.CacheTTL, logger)
	cachedExtractor := cache.NewCachedExtractor(client, metaCache)

	manager := jobs.NewManager(supervisor, store.BasePath(), logger)
	defer manager.Shutdown()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := jobs.NewSweeper(manager, cfg.FileRetention, cfg.JobRetention, logger)
	go sweeper.Run(sweepCtx)

	streamRelay := relay.New(cachedExtractor, supervisor, cfg.MergeBeforeStream, os.TempDir(), logger)

	app := handlers.NewApp(resolver, cachedExtractor, manager, streamRelay, store, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
