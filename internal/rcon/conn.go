package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Conn is one authenticated RCON session. It is not safe for concurrent use:
// the protocol is a strict request/response stream.
type Conn struct {
	conn    net.Conn
	timeout time.Duration
	lastID  int32
}

// Dial connects to addr and authenticates with password. timeout bounds the
// whole handshake and, later, every Execute call; zero means no bound beyond
// the context deadline.
//
// A rejected password returns an error wrapping ErrAuth; any transport
// failure during the handshake wraps ErrConnect.
func Dial(ctx context.Context, addr, password string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rcon: dial %s: %w: %v", addr, ErrConnect, err)
	}

	c := &Conn{conn: nc, timeout: timeout}
	if err := c.authenticate(ctx, password); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// authenticate sends the auth frame and waits for the auth response.
// Source-engine servers send an empty response frame ahead of the auth
// response, so frames that are not an auth response are skipped.
func (c *Conn) authenticate(ctx context.Context, password string) error {
	if err := c.setDeadline(ctx); err != nil {
		return fmt.Errorf("rcon: auth: %w: %v", ErrConnect, err)
	}
	defer c.conn.SetDeadline(time.Time{}) //nolint:errcheck

	id := c.nextID()
	if err := WriteFrame(c.conn, Frame{ID: id, Type: TypeAuth, Body: password}); err != nil {
		return fmt.Errorf("rcon: send auth: %w: %v", ErrConnect, err)
	}

	for {
		f, err := ReadFrame(c.conn)
		if err != nil {
			return fmt.Errorf("rcon: read auth response: %w: %v", ErrConnect, err)
		}
		switch {
		case f.ID == -1:
			return fmt.Errorf("rcon: %w", ErrAuth)
		case f.Type == TypeAuthResponse && f.ID == id:
			return nil
		}
	}
}

// Execute sends command and returns the server's reply. Replies longer than
// one frame are concatenated in arrival order.
func (c *Conn) Execute(ctx context.Context, command string) (string, error) {
	if len(command) > MaxCommandLen {
		return "", fmt.Errorf("rcon: command of %d bytes exceeds %d: %w", len(command), MaxCommandLen, ErrProtocol)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("rcon: execute: %w: %v", ErrTimeout, err)
	}
	if err := c.setDeadline(ctx); err != nil {
		return "", classify("set deadline", err)
	}
	defer c.conn.SetDeadline(time.Time{}) //nolint:errcheck

	id := c.nextID()
	term := c.nextID()

	if err := WriteFrame(c.conn, Frame{ID: id, Type: TypeCommand, Body: command}); err != nil {
		if errors.Is(err, ErrProtocol) {
			return "", fmt.Errorf("rcon: encode command: %w", err)
		}
		return "", classify("send command", err)
	}

	// Vanilla servers read one packet per socket read and drop the session
	// if two packets arrive together, so the terminator goes out only once
	// the reply has started. The server finishes a reply before reading the
	// next packet, so the terminator's echo still follows the last fragment.
	var out strings.Builder
	sentTerm := false
	for {
		f, err := ReadFrame(c.conn)
		if err != nil {
			return "", classify("read response", err)
		}
		switch f.ID {
		case id:
			out.WriteString(f.Body)
			if !sentTerm {
				if err := WriteFrame(c.conn, Frame{ID: term, Type: TypeResponse}); err != nil {
					return "", classify("send terminator", err)
				}
				sentTerm = true
			}
		case term:
			return out.String(), nil
		case -1:
			return "", fmt.Errorf("rcon: server reports session unauthenticated: %w", ErrProtocol)
		default:
			// Left over from an earlier exchange, e.g. the second terminator
			// echo Source-engine servers send.
			slog.Debug("rcon: discarding stale frame", "id", f.ID, "want", id)
		}
	}
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// nextID returns the next request id. Ids ascend and stay positive so they
// never collide with the -1 auth failure marker.
func (c *Conn) nextID() int32 {
	c.lastID++
	if c.lastID <= 0 {
		c.lastID = 1
	}
	return c.lastID
}

// setDeadline applies the per-call timeout, tightened by the ctx deadline.
func (c *Conn) setDeadline(ctx context.Context) error {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}
