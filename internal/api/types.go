package api

import (
	"context"

	"github.com/obsidianstack/rcon-exporter/internal/exporter"
)

// Source produces exposition text and health. *exporter.Exporter
// satisfies it.
type Source interface {
	Metrics(ctx context.Context) ([]byte, error)
	Health() exporter.Health
}

type errorResponse struct {
	Error string `json:"error"`
}
