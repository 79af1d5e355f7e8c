package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/obsidianstack/rcon-exporter/internal/collector"
	"github.com/obsidianstack/rcon-exporter/internal/config"
	"github.com/obsidianstack/rcon-exporter/internal/query"
	"github.com/obsidianstack/rcon-exporter/internal/rcon"
	"github.com/obsidianstack/rcon-exporter/internal/registry"
	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// Client is the game server connection. *rcon.Client satisfies it.
type Client interface {
	collector.Executor
	Addr() string
	State() rcon.State
	SetTarget(addr, password string)
}

// Health summarises the exporter for /healthz.
type Health struct {
	// Status is "starting" before the first scrape, then "ok", "degraded"
	// or "down" for a success, partial or failed last scrape.
	Status      string     `json:"status"`
	RCONState   string     `json:"rcon_state"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastScrape  *time.Time `json:"last_scrape,omitempty"`
}

// Exporter ties the client, collector and registry together.
type Exporter struct {
	client   Client
	coll     *collector.Collector
	reg      *registry.Registry
	interval time.Duration

	group singleflight.Group

	mu     sync.Mutex // guards secret across reloads
	secret string
}

// New returns an Exporter. An interval of zero selects on-demand mode.
func New(client Client, coll *collector.Collector, reg *registry.Registry, interval time.Duration) *Exporter {
	return &Exporter{client: client, coll: coll, reg: reg, interval: interval}
}

// FromConfig builds the client, collector and registry described by cfg.
// The catalog's metrics are all declared up front so a reload that enables
// more queries needs no new registry.
func FromConfig(cfg *config.Config) (*Exporter, *rcon.Client, error) {
	defs, err := query.Lookup(cfg.Exporter.Queries...)
	if err != nil {
		return nil, nil, fmt.Errorf("exporter: %w", err)
	}

	client := rcon.New(cfg.RCON.Addr(), cfg.RCON.Secret(),
		rcon.WithTimeout(cfg.RCON.Timeout),
		rcon.WithReconnectLimit(cfg.RCON.ReconnectInterval, cfg.RCON.ReconnectBurst),
	)

	descs := append(query.Descs(query.Catalog()), collector.Descs()...)
	reg, err := registry.New(cfg.RCON.Addr(), descs...)
	if err != nil {
		return nil, nil, fmt.Errorf("exporter: %w", err)
	}

	e := New(client, collector.New(client, defs), reg, cfg.Exporter.ScrapeInterval)
	e.secret = cfg.RCON.Secret()
	return e, client, nil
}

// Interval returns the background scrape interval, zero in on-demand mode.
func (e *Exporter) Interval() time.Duration { return e.interval }

// Metrics returns the exposition text. In on-demand mode it scrapes first;
// callers arriving while a scrape is in flight wait for it and share its
// result. The shared scrape is not cancelled when one caller goes away.
func (e *Exporter) Metrics(ctx context.Context) ([]byte, error) {
	if e.interval > 0 {
		return e.reg.Render(), nil
	}

	v, err, shared := e.group.Do("scrape", func() (any, error) {
		return e.scrape(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("exporter: served shared scrape")
	}
	return v.([]byte), nil
}

// Run collects immediately and then every interval until ctx is cancelled.
// It returns at once in on-demand mode.
func (e *Exporter) Run(ctx context.Context) {
	if e.interval <= 0 {
		return
	}

	slog.Info("exporter: background scraping", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if _, err := e.scrape(ctx); err != nil {
			slog.Error("exporter: scrape failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Exporter) scrape(ctx context.Context) ([]byte, error) {
	snap := e.coll.Collect(ctx)
	if err := e.reg.Publish(snap); err != nil {
		return nil, err
	}
	return e.reg.Render(), nil
}

// Reload applies a new configuration: target, password and enabled
// queries. A changed scrape interval or timeout needs a restart.
func (e *Exporter) Reload(cfg *config.Config) error {
	defs, err := query.Lookup(cfg.Exporter.Queries...)
	if err != nil {
		return fmt.Errorf("exporter: reload: %w", err)
	}

	addr, secret := cfg.RCON.Addr(), cfg.RCON.Secret()
	e.mu.Lock()
	changed := addr != e.client.Addr() || secret != e.secret
	e.secret = secret
	e.mu.Unlock()

	if changed {
		e.client.SetTarget(addr, secret)
		if err := e.reg.SetTarget(addr); err != nil {
			return fmt.Errorf("exporter: reload: %w", err)
		}
		slog.Info("exporter: rcon target changed", "addr", addr)
	}
	e.coll.SetQueries(defs)

	if cfg.Exporter.ScrapeInterval != e.interval {
		slog.Warn("exporter: scrape_interval change takes effect after restart",
			"current", e.interval, "configured", cfg.Exporter.ScrapeInterval)
	}
	slog.Info("exporter: reloaded", "queries", cfg.Exporter.Queries)
	return nil
}

// Health reports the connection state and the last scrape.
func (e *Exporter) Health() Health {
	h := Health{Status: "starting", RCONState: e.client.State().String()}
	snap := e.reg.Snapshot()
	if snap == nil {
		return h
	}

	started := snap.Started
	h.LastOutcome = string(snap.Outcome)
	h.LastScrape = &started
	switch snap.Outcome {
	case types.OutcomeSuccess:
		h.Status = "ok"
	case types.OutcomePartial:
		h.Status = "degraded"
	default:
		h.Status = "down"
	}
	return h
}
