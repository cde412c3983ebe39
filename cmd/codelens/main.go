package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asentrix510/codelens/internal/application"
	appanalysis "github.com/asentrix510/codelens/internal/application/analysis"
	"github.com/asentrix510/codelens/internal/application/events"
	"github.com/asentrix510/codelens/internal/application/pipeline"
	"github.com/asentrix510/codelens/internal/config"
	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/infra/ai"
	"github.com/asentrix510/codelens/internal/infra/ai/local"
	"github.com/asentrix510/codelens/internal/infra/capture"
	mysqlp "github.com/asentrix510/codelens/internal/infra/db/mysql"
	"github.com/asentrix510/codelens/internal/infra/db/postgres"
	"github.com/asentrix510/codelens/internal/infra/httpserver"
	"github.com/asentrix510/codelens/internal/infra/overlay"
	minioStore "github.com/asentrix510/codelens/internal/infra/storage"
	"github.com/asentrix510/codelens/internal/middleware"
	"github.com/asentrix510/codelens/internal/resilience"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("config load error", "error", err)
		os.Exit(1)
	}
	for _, problem := range cfg.Validate() {
		log.Warn("config problem", "problem", problem)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub()

	retrier := resilience.NewRetrier(resilience.Config{
		MaxRetries:   cfg.Retry.MaxRetries,
		TickInterval: time.Duration(cfg.Retry.TickMS) * time.Millisecond,
		BaseDelay:    time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
	}, true, log, func(online bool) {
		if online {
			hub.Publish(events.Event{Type: events.Online})
		} else {
			hub.Publish(events.Event{Type: events.Offline})
		}
	})
	defer retrier.Clear()
	go resilience.NewProbe().Run(ctx, retrier)

	// optional analysis history
	var repo domain.Repository
	checks := map[string]middleware.HealthChecker{}
	if cfg.Database.Enabled {
		switch cfg.Database.Driver {
		case "postgres":
			db, err := postgres.Connect(ctx, cfg.PostgresDSN())
			if err != nil {
				log.Error("postgres connect error", "error", err)
				os.Exit(1)
			}
			defer db.Close()
			repo = postgres.NewResultRepository(db)
			checks["database"] = &middleware.DatabaseHealthChecker{DB: db}
		default:
			db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
			if err != nil {
				log.Error("mysql connect error", "error", err)
				os.Exit(1)
			}
			defer db.Close()
			repo = mysqlp.NewResultRepository(db)
			checks["database"] = &middleware.DatabaseHealthChecker{DB: db}
		}
	}

	// optional snapshot storage
	var snaps domain.SnapshotStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Error("minio init error", "error", err)
			os.Exit(1)
		}
		snaps = store
	}

	resolve := providerResolver(cfg)

	queue := appanalysis.NewQueue(appanalysis.Config{
		Model:      cfg.LLM.Model,
		Timeout:    time.Duration(cfg.LLM.TimeoutMS) * time.Millisecond,
		MaxRetries: cfg.Retry.MaxRetries,
	}, resolve, retrier, hub, repo, snaps, application.SystemClock{}, log)

	// demo frame pipeline: directory-backed source with sidecar OCR text
	if dir := os.Getenv("FRAME_DIR"); dir != "" {
		source, err := capture.NewFileSource(dir)
		if err != nil {
			log.Error("frame source init error", "error", err)
			os.Exit(1)
		}
		orch := pipeline.NewOrchestrator(
			source,
			&capture.FullFrameDetector{},
			&capture.SidecarExtractor{},
			queue,
			overlay.NewLogPresenter(log),
			pipeline.Config{
				TargetFPS:     cfg.Pipeline.TargetFPS,
				MaxRegions:    cfg.Pipeline.MaxRegions,
				MinConfidence: cfg.Pipeline.MinConfidence,
				MinTextLen:    cfg.Pipeline.MinTextLen,
				HistoryCap:    cfg.Pipeline.HistoryCap,
				AttachFrames:  cfg.Pipeline.AttachFrames,
			},
			application.SystemClock{},
			log,
		)
		go func() {
			if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("pipeline stopped", "error", err)
			}
		}()
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(repo, hub, queue, checks, log))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server")

	queue.CancelAll()
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// providerResolver picks real providers by model name, or the offline
// heuristic analyzer when running in debug mode without an API key.
func providerResolver(cfg *config.Config) appanalysis.ProviderResolver {
	if cfg.LLM.Debug && cfg.LLM.APIKey == "" {
		analyzer := local.New()
		return func(string) (domain.Provider, error) { return analyzer, nil }
	}
	opts := ai.Options{
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	return func(model string) (domain.Provider, error) {
		return ai.ForModel(model, opts)
	}
}
