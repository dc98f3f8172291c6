package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"

	"github.com/restexporter/restexporter/exporter/internal/api"
	"github.com/restexporter/restexporter/exporter/internal/config"
	"github.com/restexporter/restexporter/exporter/internal/configsync"
	"github.com/restexporter/restexporter/exporter/internal/orchestrator"
	"github.com/restexporter/restexporter/exporter/internal/router"
	"github.com/restexporter/restexporter/exporter/internal/session"
	"github.com/restexporter/restexporter/exporter/internal/telemetry"
	"github.com/restexporter/restexporter/exporter/internal/transport"
)

// options are the command line options.
type options struct {
	Config        string        `short:"c" long:"config" description:"path to the exporter configuration file" default:"config.yaml"`
	Listen        string        `short:"l" long:"listen" description:"address to serve metrics on" default:":9701"`
	SyncURL       string        `long:"sync-url" description:"coordinator configuration endpoint; empty disables sync"`
	SyncStreamURL string        `long:"sync-stream-url" description:"coordinator websocket update stream"`
	SyncInterval  time.Duration `long:"sync-interval" description:"how often to poll the coordinator" default:"30s"`
	SyncKeyEnv    string        `long:"sync-key-env" description:"environment variable holding the coordinator API key" default:"RESTEXPORTER_SYNC_KEY"`
	SyncHeader    string        `long:"sync-header" description:"header carrying the coordinator API key" default:"X-API-Key"`
	Debug         bool          `short:"d" long:"debug" description:"debug logging to the terminal"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "restexporter"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	slog.SetDefault(newLogger(opts.Debug))
	slog.Info("restexporter starting", "config", opts.Config, "listen", opts.Listen)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"host", cfg.Host,
		"port", cfg.Port,
		"rest_port", cfg.RestPort,
		"protocol", cfg.Protocol,
		"queries", len(cfg.Queries),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	live := config.NewLive(cfg)
	ledger := orchestrator.NewRetryLedger()
	orch := orchestrator.New(live, session.New(), router.NewSuccessSet(), ledger, transport.HTTP)
	metrics := telemetry.New(ledger.Count)

	var pusher api.Pusher
	if opts.SyncURL != "" {
		syncer := configsync.New(live, configsync.Options{
			URL:       opts.SyncURL,
			StreamURL: opts.SyncStreamURL,
			Interval:  opts.SyncInterval,
			APIKey:    os.Getenv(opts.SyncKeyEnv),
			Header:    opts.SyncHeader,
			OnApply:   func(*config.Config) { orch.Reset() },
		})
		pusher = syncer
		go syncer.Run(ctx)
		go syncer.Subscribe(ctx)
		slog.Info("configuration sync enabled", "url", opts.SyncURL, "interval", opts.SyncInterval)
	}

	go func() {
		if err := config.Watch(ctx, opts.Config, func(updated *config.Config) {
			live.Replace(updated)
			orch.Reset()
			if pusher != nil {
				if err := pusher.Push(ctx); err != nil {
					slog.Warn("configuration push failed", "err", err)
				}
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              opts.Listen,
		Handler:           api.New(live, orch, metrics, pusher),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", opts.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("restexporter shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// newLogger returns a JSON logger on stdout, or a colorized debug logger on
// stderr when debug is set.
func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			NoColor:    runtime.GOOS == "windows",
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
