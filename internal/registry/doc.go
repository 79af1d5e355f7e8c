// Package registry holds the exporter's current snapshot and renders it in
// the Prometheus text exposition format.
//
// Publish converts a snapshot into client_model metric families, renders
// them once with expfmt and swaps the result in atomically, so Render is a
// lock-free read of pre-built bytes: readers never see a half-written
// exposition and two Renders without a Publish in between are identical.
//
// Only declared metrics are rendered. Declarations come from the query
// catalog and the collector; the registry adds its own scrape metadata
// (build info, scrape success, duration, outcome and timestamp).
package registry
