// Package rcon implements a client for the Source RCON protocol spoken by
// Minecraft's remote administration port.
//
// Frames are little endian: int32 length, int32 request id, int32 type, a
// null-terminated body and one trailing null byte. Dial opens a TCP session
// and authenticates with the shared password; Conn.Execute sends one command
// and reassembles the (possibly fragmented) reply. Because the protocol has
// no end-of-response marker, an empty terminator frame with the next id is
// sent as soon as the first reply fragment arrives: the server answers
// requests in order, so the terminator's echo marks the end of the
// command's reply. Frames are always written one per socket write, since
// vanilla servers parse exactly one packet per read.
//
// Client owns a single Conn and applies the reconnect policy: one reconnect
// and one retry when the session drops mid-exchange, then the error is
// returned. Reconnect attempts are throttled with a token bucket so an
// unreachable server is not hammered by every scrape.
package rcon
