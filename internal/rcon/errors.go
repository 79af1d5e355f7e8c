package rcon

import (
	"errors"
	"fmt"
	"net"
)

// Error classes returned (wrapped) by Dial, Conn and Client.
// Match them with errors.Is.
var (
	ErrConnect      = errors.New("connect failed")
	ErrAuth         = errors.New("authentication rejected")
	ErrTimeout      = errors.New("timed out")
	ErrProtocol     = errors.New("protocol violation")
	ErrDisconnected = errors.New("connection closed")
)

// classify maps a transport error seen mid-exchange to one of the error classes.
func classify(op string, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, ErrProtocol):
		return fmt.Errorf("rcon: %s: %w", op, err)
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("rcon: %s: %w: %v", op, ErrTimeout, err)
	default:
		return fmt.Errorf("rcon: %s: %w: %v", op, ErrDisconnected, err)
	}
}
