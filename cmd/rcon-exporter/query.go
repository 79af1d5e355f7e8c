package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/rcon-exporter/internal/config"
	"github.com/obsidianstack/rcon-exporter/internal/exporter"
)

var errScrapeFailed = errors.New("scrape failed")

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query [query names...]",
		Short: "Run queries once and print the exposition text",
		Long: `Connect to the configured RCON server, run the enabled queries once and
print the result in the Prometheus text format. Query names given as
arguments replace exporter.queries from the config.

Example:
  rcon-exporter query --config rcon-exporter.yaml list tps`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), opts.configPath, args)
		},
	}
}

func runQuery(ctx context.Context, out io.Writer, configPath string, names []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		cfg.Exporter.Queries = names
	}
	cfg.Exporter.ScrapeInterval = 0

	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(newLogger(os.Stderr, "text", level))

	exp, client, err := exporter.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	text, err := exp.Metrics(ctx)
	if err != nil {
		return err
	}
	if _, err := out.Write(text); err != nil {
		return err
	}

	if h := exp.Health(); h.Status == "down" {
		return fmt.Errorf("%w: %s unreachable (%s)", errScrapeFailed, cfg.RCON.Addr(), h.RCONState)
	}
	return nil
}
