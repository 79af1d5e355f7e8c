package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/obsidianstack/rcon-exporter/internal/api"
	"github.com/obsidianstack/rcon-exporter/internal/config"
	"github.com/obsidianstack/rcon-exporter/internal/exporter"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP exporter",
		Long: `Serve Prometheus metrics collected from the configured RCON server.

Endpoints:
  /metrics   Exposition text (path configurable)
  /healthz   Exporter and connection health (JSON)
  /          Landing page

Example:
  RCON_PASSWORD=secret rcon-exporter serve --config rcon-exporter.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(newLogger(os.Stdout, cfg.Log.Format, level))

	slog.Info("rcon-exporter starting", "version", version.Version, "config", configPath)

	exp, client, err := exporter.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Bind first so a taken port fails the process before anything else runs.
	ln, err := net.Listen("tcp", cfg.Exporter.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Exporter.ListenAddr(), err)
	}

	slog.Info("config loaded",
		"rcon_addr", cfg.RCON.Addr(),
		"queries", cfg.Exporter.Queries,
		"scrape_interval", cfg.Exporter.ScrapeInterval,
	)

	// An unreachable server at startup is not fatal; scrapes report it.
	if err := client.Connect(ctx); err != nil {
		slog.Warn("rcon server not reachable at startup", "addr", cfg.RCON.Addr(), "err", err)
	}

	go exp.Run(ctx)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(updated *config.Config) {
				level.Set(updated.Log.SlogLevel())
				if updated.Exporter.ListenPort != cfg.Exporter.ListenPort ||
					updated.Exporter.MetricsPath != cfg.Exporter.MetricsPath {
					slog.Warn("listen_port and metrics_path changes take effect after restart")
				}
				if err := exp.Reload(updated); err != nil {
					slog.Error("config reload rejected", "err", err)
				}
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Handler:           api.New(exp, cfg.Exporter.MetricsPath, client.Addr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ln.Addr().String(), "metrics_path", cfg.Exporter.MetricsPath)
		serveErr <- httpSrv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	slog.Info("rcon-exporter shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
