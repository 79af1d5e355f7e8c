package registry

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/prometheus/common/version"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/rcon-exporter/pkg/types"
)

// Scrape metadata rendered on every exposition.
var (
	BuildInfo = types.Desc{
		Name:   "rcon_exporter_build_info",
		Help:   "A metric with a constant '1' value labeled by exporter version and target server.",
		Labels: []string{"version", "revision", "goversion", "target"},
	}
	ScrapeSuccess = types.Desc{
		Name: "scrape_success",
		Help: "Whether the last scrape reached the game server (1) or not (0).",
	}
	ScrapeDuration = types.Desc{
		Name: "scrape_duration_seconds",
		Help: "Duration of the last scrape.",
	}
	ScrapeOutcome = types.Desc{
		Name:   "scrape_outcome",
		Help:   "Outcome of the last scrape: success, partial or failure.",
		Labels: []string{"outcome"},
	}
	LastScrape = types.Desc{
		Name: "last_scrape_timestamp_seconds",
		Help: "Unix time the last scrape started.",
	}
)

var builtins = []types.Desc{BuildInfo, ScrapeSuccess, ScrapeDuration, ScrapeOutcome, LastScrape}

// state is one immutable published generation.
type state struct {
	snapshot *types.Snapshot
	families []*dto.MetricFamily
	text     []byte
}

// Registry is the process-wide exposition cache. Publish and SetTarget are
// serialised; Render, Snapshot and Families never block.
type Registry struct {
	descs []types.Desc
	index map[string]int

	mu      sync.Mutex // serialises writers
	target  string
	current atomic.Pointer[state]
}

// New returns a Registry that renders the built-in metadata plus descs, in
// that order. target identifies the scraped server in the build info metric.
func New(target string, descs ...types.Desc) (*Registry, error) {
	r := &Registry{target: target, index: make(map[string]int)}
	for _, d := range append(append([]types.Desc{}, builtins...), descs...) {
		if !model.IsValidMetricName(model.LabelValue(d.Name)) {
			return nil, fmt.Errorf("registry: invalid metric name %q", d.Name)
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("registry: metric %q declared twice", d.Name)
		}
		r.index[d.Name] = len(r.descs)
		r.descs = append(r.descs, d)
	}

	st, err := r.build(nil)
	if err != nil {
		return nil, err
	}
	r.current.Store(st)
	return r, nil
}

// Publish atomically replaces the current snapshot. Samples of undeclared
// metrics are dropped. On a rendering error the previous generation stays
// current and the error is returned.
func (r *Registry) Publish(snap *types.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.build(snap)
	if err != nil {
		return err
	}
	r.current.Store(st)
	return nil
}

// SetTarget changes the target label and re-renders the current snapshot.
func (r *Registry) SetTarget(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == r.target {
		return nil
	}
	r.target = target
	st, err := r.build(r.current.Load().snapshot)
	if err != nil {
		return err
	}
	r.current.Store(st)
	return nil
}

// Render returns the current exposition text. The returned slice is shared;
// callers must not modify it.
func (r *Registry) Render() []byte {
	return r.current.Load().text
}

// Snapshot returns the current snapshot, or nil before the first Publish.
func (r *Registry) Snapshot() *types.Snapshot {
	return r.current.Load().snapshot
}

// Families returns the metric families behind the current text. They are
// shared; callers must not modify them.
func (r *Registry) Families() []*dto.MetricFamily {
	return r.current.Load().families
}

// build renders one generation. Callers hold r.mu (or own r exclusively).
func (r *Registry) build(snap *types.Snapshot) (*state, error) {
	families := make([]*dto.MetricFamily, len(r.descs))
	for i, d := range r.descs {
		families[i] = newFamily(d)
	}
	add := func(name string, labels map[string]string, v float64) {
		i := r.index[name]
		families[i].Metric = append(families[i].Metric, newMetric(r.descs[i].Kind, labels, v))
	}

	add(BuildInfo.Name, map[string]string{
		"version":   version.Version,
		"revision":  version.Revision,
		"goversion": version.GoVersion,
		"target":    r.target,
	}, 1)

	if snap == nil {
		add(ScrapeSuccess.Name, nil, 0)
	} else {
		success := 1.0
		if snap.Outcome == types.OutcomeFailure {
			success = 0
		}
		add(ScrapeSuccess.Name, nil, success)
		add(ScrapeDuration.Name, nil, snap.Duration.Seconds())
		add(ScrapeOutcome.Name, map[string]string{"outcome": string(snap.Outcome)}, 1)
		add(LastScrape.Name, nil, float64(snap.Started.UnixNano())/1e9)

		seen := make(map[string]bool, len(snap.Samples))
		for _, s := range snap.Samples {
			if _, ok := r.index[s.Name]; !ok {
				slog.Warn("registry: dropping undeclared metric", "metric", s.Name, "scrape_id", snap.ID)
				continue
			}
			key := s.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			add(s.Name, s.Labels, s.Value)
		}
	}

	// Families without samples are not rendered.
	out := families[:0]
	for _, mf := range families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}

	var buf bytes.Buffer
	for _, mf := range out {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("registry: render %s: %w", mf.GetName(), err)
		}
	}
	return &state{snapshot: snap, families: out, text: buf.Bytes()}, nil
}

func newFamily(d types.Desc) *dto.MetricFamily {
	typ := dto.MetricType_GAUGE
	if d.Kind == types.Counter {
		typ = dto.MetricType_COUNTER
	}
	return &dto.MetricFamily{
		Name: proto.String(d.Name),
		Help: proto.String(d.Help),
		Type: typ.Enum(),
	}
}

func newMetric(kind types.Kind, labels map[string]string, v float64) *dto.Metric {
	m := &dto.Metric{Label: labelPairs(labels)}
	if kind == types.Counter {
		m.Counter = &dto.Counter{Value: proto.Float64(v)}
	} else {
		m.Gauge = &dto.Gauge{Value: proto.Float64(v)}
	}
	return m
}

// labelPairs returns labels as client_model pairs sorted by name, so the
// rendered text does not depend on map iteration order.
func labelPairs(labels map[string]string) []*dto.LabelPair {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*dto.LabelPair, len(names))
	for i, k := range names {
		out[i] = &dto.LabelPair{Name: proto.String(k), Value: proto.String(labels[k])}
	}
	return out
}
