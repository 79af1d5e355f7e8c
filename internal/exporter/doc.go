// Package exporter schedules scrapes and hands out exposition text.
//
// In on-demand mode (interval zero) every Metrics call collects fresh data,
// but concurrent callers share one in-flight scrape through singleflight and
// all receive the same bytes. In interval mode Run collects in the
// background and Metrics only reads the registry's cached rendering.
package exporter
