package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"

	"github.com/restexporter/restexporter/coordinator/internal/api"
	"github.com/restexporter/restexporter/coordinator/internal/auth"
	"github.com/restexporter/restexporter/coordinator/internal/config"
	"github.com/restexporter/restexporter/coordinator/internal/store"
	"github.com/restexporter/restexporter/coordinator/internal/ws"
)

type options struct {
	Config string `short:"c" long:"config" description:"path to the coordinator configuration file; empty uses defaults"`
	Debug  bool   `short:"d" long:"debug" description:"debug logging to the terminal"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "restexporter-coordinator"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	slog.SetDefault(newLogger(opts.Debug))
	slog.Info("restexporter-coordinator starting", "config", opts.Config)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "http_port", cfg.HTTPPort, "auth_mode", cfg.Auth.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()

	// Update stream: exporters subscribe here to receive accepted configurations.
	hub := ws.New(st)
	go hub.Run(ctx)

	withAuth := func(h http.Handler) http.Handler {
		return auth.APIKey(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key(), h)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", withAuth(api.New(st, hub)))
	httpMux.Handle("/ws/updates", withAuth(hub))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("restexporter-coordinator shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

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
