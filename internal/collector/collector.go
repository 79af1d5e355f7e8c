package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/rcon-exporter/internal/query"
	"github.com/obsidianstack/rcon-exporter/internal/rcon"
	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// QueryErrors is the metric the collector emits for a failed query.
var QueryErrors = types.Desc{
	Name:   "query_errors_total",
	Help:   "Total number of failed RCON queries, by query name.",
	Kind:   types.Counter,
	Labels: []string{"query"},
}

// Descs returns the metrics the collector itself emits.
func Descs() []types.Desc {
	return []types.Desc{QueryErrors}
}

// Executor runs commands on the game server. *rcon.Client satisfies it.
type Executor interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string) (string, error)
}

// Collector drives the query catalog through an Executor.
//
// All exported methods are safe for concurrent use; Collect calls run one
// at a time.
type Collector struct {
	exec Executor

	mu      sync.Mutex
	queries []query.Definition
	errors  map[string]float64 // cumulative failures per query name
	now     func() time.Time   // injectable for deterministic tests
}

// New returns a Collector running queries, in order, through exec.
func New(exec Executor, queries []query.Definition) *Collector {
	return &Collector{
		exec:    exec,
		queries: queries,
		errors:  make(map[string]float64),
		now:     time.Now,
	}
}

// SetQueries replaces the enabled queries. It waits for a scrape in flight.
func (c *Collector) SetQueries(queries []query.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = queries
}

// Queries returns the enabled queries.
func (c *Collector) Queries() []query.Definition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]query.Definition, len(c.queries))
	copy(out, c.queries)
	return out
}

// Collect performs one scrape and returns its snapshot. It never fails:
// errors are recorded in the snapshot and as query_errors_total samples.
func (c *Collector) Collect(ctx context.Context) *types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	snap := &types.Snapshot{
		ID:      uuid.NewString(),
		Started: start,
		Errors:  make(map[string]string),
	}
	log := slog.With("scrape_id", snap.ID)

	if err := c.exec.Connect(ctx); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, rcon.ErrAuth) {
			level = slog.LevelError
		}
		log.Log(ctx, level, "collector: server unreachable", "err", err)
		snap.Outcome = types.OutcomeFailure
		snap.Duration = c.now().Sub(start)
		return snap
	}

	for _, q := range c.queries {
		samples, err := c.run(ctx, q)
		at := c.now()
		for _, s := range samples {
			s.Timestamp = at
			snap.Samples = append(snap.Samples, s)
		}
		if err != nil {
			c.errors[q.Name]++
			snap.Errors[q.Name] = err.Error()
			log.Warn("collector: query failed", "query", q.Name, "kept_samples", len(samples), "err", err)
		}

		// Once a query has failed its counter is reported on every scrape,
		// so the series stays continuous after the query recovers.
		if n, ok := c.errors[q.Name]; ok {
			snap.Samples = append(snap.Samples, types.Sample{
				Name:      QueryErrors.Name,
				Labels:    map[string]string{"query": q.Name},
				Value:     n,
				Timestamp: at,
			})
		}
	}

	snap.Duration = c.now().Sub(start)
	snap.Outcome = types.OutcomeSuccess
	if len(snap.Errors) > 0 {
		snap.Outcome = types.OutcomePartial
	}
	log.Debug("collector: scrape complete",
		"outcome", snap.Outcome,
		"samples", len(snap.Samples),
		"duration", snap.Duration,
	)
	return snap
}

// run executes one query and parses its reply. On a parse error the
// samples parsed so far are still returned.
func (c *Collector) run(ctx context.Context, q query.Definition) ([]types.Sample, error) {
	raw, err := c.exec.Execute(ctx, q.Command)
	if err != nil {
		return nil, err
	}
	return q.Parse(raw)
}
