package types

import (
	"sort"
	"strings"
	"time"
)

// Kind is the Prometheus metric type of a declared metric.
type Kind int

const (
	Gauge Kind = iota
	Counter
)

func (k Kind) String() string {
	if k == Counter {
		return "counter"
	}
	return "gauge"
}

// Desc declares one metric the exporter is allowed to emit.
type Desc struct {
	Name   string
	Help   string
	Kind   Kind
	Labels []string // label keys every sample of this metric carries
}

// Sample is one observed value. Samples are never mutated after creation.
type Sample struct {
	Name      string
	Labels    map[string]string
	Value     float64
	Timestamp time.Time
}

// Key returns a stable identity for the sample's series (name plus sorted labels).
func (s Sample) Key() string {
	if len(s.Labels) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(s.Labels[k])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Outcome summarises how a scrape went.
type Outcome string

const (
	OutcomeSuccess Outcome = "success" // every query succeeded
	OutcomePartial Outcome = "partial" // at least one query failed
	OutcomeFailure Outcome = "failure" // the server could not be reached at all
)

// Snapshot is the immutable result of one scrape.
type Snapshot struct {
	ID       string
	Samples  []Sample
	Outcome  Outcome
	Started  time.Time
	Duration time.Duration

	// Errors maps a failed query name to its error message.
	Errors map[string]string
}

// Failed reports whether the query with the given name failed in this scrape.
func (s *Snapshot) Failed(query string) bool {
	_, ok := s.Errors[query]
	return ok
}
