package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yt-grab/internal/orchestrator"
	"yt-grab/internal/platform/config"
	"yt-grab/internal/platform/logger"
	"yt-grab/internal/platform/metrics"
	"yt-grab/internal/ytdlp"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	ytdlpPath := config.GetEnv("YTDLP_PATH", "")
	ffmpegPath := config.GetEnv("FFMPEG_PATH", "")
	maxVideos := config.GetEnvInt("MAX_VIDEOS_PER_REQUEST", orchestrator.DefaultMaxVideos)
	artifactTTL := config.GetEnvDuration("ARTIFACT_TTL", orchestrator.DefaultArtifactTTL)
	sweepInterval := config.GetEnvDuration("SWEEP_INTERVAL", orchestrator.DefaultSweepInterval)

	log := logger.New(logLevel, logFormat)

	tool := ytdlp.NewTool(ytdlpPath, ffmpegPath)
	resolver := ytdlp.NewResolver(tool)
	runner := ytdlp.NewRunner(tool, log)

	registry := orchestrator.NewRegistry(artifactTTL, log)
	svc := orchestrator.NewService(runner, registry, maxVideos, log)
	met := metrics.New()
	h := orchestrator.NewHandler(svc, resolver, registry, tool, log, met)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.Run(sweepCtx, sweepInterval)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetPendingArtifacts(registry.Len()) }).ServeHTTP(w, req)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"ytdlp", tool.YtDlp,
		"ffmpeg", tool.Ffmpeg,
		"max_videos", maxVideos,
		"artifact_ttl", artifactTTL.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
