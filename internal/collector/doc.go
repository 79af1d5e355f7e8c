// Package collector runs the enabled query catalog against the game server
// and assembles one types.Snapshot per scrape.
//
// Collect is fault-isolated per query: an execute or parse error is logged,
// counted in query_errors_total{query} and the scrape moves on to the next
// query. A query that has failed once keeps its counter in every later
// snapshot so the series does not vanish when it recovers. Only a failure
// to reach the server at all marks the whole snapshot as a failure. Calls to Collect are serialised so two scrapes never drive
// the single RCON session concurrently.
package collector
