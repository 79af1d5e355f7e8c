// Package types defines the shared Go types passed between the query catalog,
// the collector and the registry. These are the canonical in-memory
// representations of scraped server state, separate from the Prometheus
// exposition format the registry renders them into.
package types
