// Package api implements the exporter's HTTP surface.
//
// New(src, metricsPath, target) returns an http.Handler that serves the
// routes below; target supplies the server address shown on the landing
// page:
//
//	GET <metricsPath>  Prometheus text exposition (default /metrics)
//	GET /healthz       JSON: status, rcon_state, last_outcome, last_scrape
//	GET /              HTML landing page linking the two
//
// Non-GET methods get 405. A failed or partial scrape is still a 200 on
// the metrics path; scrape_success carries the outcome. Only a rendering
// failure inside the exporter produces a 500.
package api
