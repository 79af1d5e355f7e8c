package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single handshake or command exchange.
const DefaultTimeout = 5 * time.Second

// State is the lifecycle state of the Client's connection.
type State int32

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// dialFunc opens an authenticated session. Abstracted so tests can count or
// fail dials.
type dialFunc func(ctx context.Context, addr, password string, timeout time.Duration) (*Conn, error)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call bound for handshakes and commands.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithReconnectLimit allows at most burst connection attempts at once,
// refilled at one attempt per every. A zero every disables throttling.
func WithReconnectLimit(every time.Duration, burst int) Option {
	return func(c *Client) {
		if every <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// Client owns a single RCON session to one server and reconnects on demand.
//
// Execute serialises callers internally; State may be read at any time
// without waiting for an exchange in flight.
type Client struct {
	mu       sync.Mutex
	addr     string
	password string
	timeout  time.Duration
	limiter  *rate.Limiter
	dialFn   dialFunc
	conn     *Conn

	state atomic.Int32
}

// New returns a Client for addr (host:port). No connection is opened until
// Connect or Execute is called.
func New(addr, password string, opts ...Option) *Client {
	c := &Client{
		addr:     addr,
		password: password,
		timeout:  DefaultTimeout,
		dialFn:   Dial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the server address the client talks to.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect makes sure an authenticated session is open. It is a no-op when
// the client is already Ready.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	return c.connectLocked(ctx)
}

// Execute runs command on the server and returns the raw reply.
//
// Without a live session, one connection attempt is made first. If the
// session drops mid-exchange, the client reconnects once and retries the
// command once; a second failure is returned to the caller. Timeouts and
// protocol errors close the session (the stream may be out of sync) and are
// returned without retry.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return "", err
		}
	}

	out, err := c.conn.Execute(ctx, command)
	if err == nil {
		return out, nil
	}
	c.dropLocked()
	if !errors.Is(err, ErrDisconnected) {
		return "", err
	}

	slog.Info("rcon: session dropped, reconnecting", "addr", c.addr, "err", err)
	if err := c.connectLocked(ctx); err != nil {
		return "", err
	}
	out, err = c.conn.Execute(ctx, command)
	if err != nil {
		c.dropLocked()
		return "", err
	}
	return out, nil
}

// SetTarget points the client at a new server. An open session is closed
// when the target or password changes.
func (c *Client) SetTarget(addr, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr == c.addr && password == c.password {
		return
	}
	c.addr = addr
	c.password = password
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateDisconnected))
}

// Close closes the session, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateDisconnected))
	return err
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.limiter != nil && !c.limiter.Allow() {
		c.state.Store(int32(StateFailed))
		return fmt.Errorf("rcon: connect to %s throttled: %w", c.addr, ErrConnect)
	}

	c.state.Store(int32(StateAuthenticating))
	conn, err := c.dialFn(ctx, c.addr, c.password, c.timeout)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return err
	}
	c.conn = conn
	c.state.Store(int32(StateReady))
	slog.Debug("rcon: connected", "addr", c.addr)
	return nil
}

// dropLocked closes the current session and marks the client Failed.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateFailed))
}
