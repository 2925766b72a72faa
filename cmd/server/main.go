package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sedconv/internal/api"
	"github.com/RMahshie/sedconv/internal/api/handlers"
	"github.com/RMahshie/sedconv/internal/config"
	"github.com/RMahshie/sedconv/internal/convolve"
	"github.com/RMahshie/sedconv/internal/filters"
	"github.com/RMahshie/sedconv/internal/processing"
	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/internal/repository/memory"
	"github.com/RMahshie/sedconv/internal/repository/postgres"
	"github.com/RMahshie/sedconv/internal/storage"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setLogLevel(cfg.Log.Level)

	pipeline, err := config.LoadPipeline(cfg.Pipeline.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pipeline configuration")
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.StorageFor(pipeline.OutputRoot))
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to initialize artifact store")
	}

	runRepo, closeRepo := openRepository(ctx, cfg.Database.URL)
	defer closeRepo()

	driver := convolve.NewDriver(convolve.NewDirReader(), convolve.TrapezoidConvolver{}, store)
	pipelineSvc := processing.NewPipelineService(pipeline, filters.NewLoader(pipeline.FilterDir), driver, runRepo)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("sedconv API", handlers.Version)
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	api.RegisterRoutes(humaAPI, runRepo, pipelineSvc, store, pipeline.Stages)
	router.Handle("/metrics", promhttp.Handler())

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Int("filters", len(pipeline.FilterTable)).
			Int("model_families", len(pipeline.ModelDirectories)).
			Msg("Starting sedconv API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openRepository connects to PostgreSQL when a URL is configured and falls
// back to the in-memory repository otherwise.
func openRepository(ctx context.Context, url string) (repository.RunRepository, func()) {
	if url == "" {
		log.Warn().Msg("DATABASE_URL not set, run history is kept in memory")
		return memory.NewRunRepository(), func() {}
	}

	db, err := postgres.Open(ctx, url)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	return postgres.NewPostgresRunRepository(db), func() { db.Close() }
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
