package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/iconidentify/ytgrabba/internal/api"
	"github.com/iconidentify/ytgrabba/internal/api/handler"
	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/extractor"
	"github.com/iconidentify/ytgrabba/internal/service"
	"github.com/iconidentify/ytgrabba/internal/stream"
	"github.com/iconidentify/ytgrabba/internal/tempfile"
	"github.com/iconidentify/ytgrabba/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytgrabba %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger; the level is adjusted once config is loaded
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ytgrabba",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	lvl, _ := config.ParseLevel(cfg.Log.Level)
	level.Set(lvl)

	// Prepare the download directory before accepting connections
	registry, err := tempfile.NewRegistry(afero.NewOsFs(), tempfile.Options{
		Dir:            cfg.Storage.DownloadsDir,
		TitleMaxLength: cfg.Storage.TitleMaxLength,
		AudioCodec:     cfg.Extractor.AudioCodec,
	}, logger)
	if err != nil {
		logger.Error("invalid download directory", "error", err)
		os.Exit(1)
	}
	if err := registry.Ensure(); err != nil {
		logger.Error("failed to create download directory", "error", err)
		os.Exit(1)
	}
	if _, err := registry.Sweep(); err != nil {
		logger.Warn("startup sweep failed", "dir", registry.Dir(), "error", err)
	}

	runner := extractor.NewCLIRunner(cfg.Extractor.YtdlpPath)
	probe := ffmpeg.NewProbe()
	creds := &domain.CredentialBundle{CookiesFile: cfg.Extractor.CookiesFile}
	logDiagnostics(logger, registry.Dir(), runner, creds, probe)

	// Initialize services
	ex := extractor.NewYTDLP(runner, cfg.Extractor, logger)
	querySvc := service.NewQueryService(ex, cfg.Extractor, logger)
	downloadSvc := service.NewDownloadService(
		ex,
		registry,
		stream.NewStreamer(registry.Fs(), registry, logger),
		creds,
		logger,
	)

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(querySvc, downloadSvc, logger)
	healthHandler := handler.NewHealthHandler(registry, probe, runner.Executable())

	// Setup router
	router := api.NewRouter(videoHandler, healthHandler, cfg.Server.CORSOrigins)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown; in-flight streams release their own files
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// logDiagnostics reports the external tools and credentials downloads depend on.
// Nothing here is fatal: a missing tool surfaces as failed requests and on /ready.
func logDiagnostics(logger *slog.Logger, dir string, runner *extractor.CLIRunner, creds *domain.CredentialBundle, probe *ffmpeg.Probe) {
	logger.Info("download directory ready",
		"dir", dir,
		"disk_free", humanize.IBytes(service.FreeDiskSpace(dir)),
	)

	if path, err := exec.LookPath(runner.Executable()); err != nil {
		logger.Warn("yt-dlp not found, all extraction will fail", "path", runner.Executable(), "error", err)
	} else {
		logger.Info("yt-dlp found", "path", path)
	}

	switch {
	case !creds.Configured():
		logger.Info("no cookies file configured, restricted videos may fail")
	default:
		if _, err := os.Stat(creds.CookiesFile); err != nil {
			logger.Warn("cookies file not found", "path", creds.CookiesFile, "error", err)
		} else {
			logger.Info("cookies file found", "path", creds.CookiesFile)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !probe.IsAvailable() {
		logger.Warn("ffmpeg not found, mp3 extraction and format merging will fail")
		return
	}
	if v, err := probe.Version(ctx); err == nil {
		logger.Info("ffmpeg found", "version", v)
	}
}
