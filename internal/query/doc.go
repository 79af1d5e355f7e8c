// Package query holds the static catalog of RCON queries the exporter runs
// on every scrape and the parsers that turn their replies into samples.
//
// Each Definition pairs a command with a pure parser and the metrics the
// parser may emit. Parsers tolerate format drift: they return every sample
// they could derive with confidence and a *ParseError describing what they
// could not, so a reply that is only half understood still yields data.
package query
