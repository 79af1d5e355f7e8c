package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// options are the flags shared by all subcommands.
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "rcon-exporter",
		Short: "Prometheus exporter for RCON game servers",
		Long: `rcon-exporter queries a Minecraft server over RCON and serves the
results in the Prometheus text exposition format.

Commands:
  serve     Run the HTTP exporter
  query     Run the enabled queries once and print the exposition text
  version   Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to the YAML config file (defaults apply when omitted)")

	root.AddCommand(
		newServeCmd(opts),
		newQueryCmd(opts),
		newVersionCmd(),
	)
	return root
}

// newLogger builds the process logger. level is a LevelVar so a config
// reload can change verbosity in place.
func newLogger(w io.Writer, format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
