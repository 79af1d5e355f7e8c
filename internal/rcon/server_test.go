package rcon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeServer is a minimal in-process RCON server. Configure its fields, then
// call start.
type fakeServer struct {
	ln       net.Listener
	password string
	handler  func(cmd string) string

	fragment   int                      // max body bytes per reply frame; 0 means 4096
	sourceAuth bool                     // send an empty response frame ahead of the auth reply
	silent     bool                     // never answer commands
	prelude    []Frame                  // written before every command reply
	drop       func(conn, cmd int) bool // close the connection instead of replying
	vanilla    bool                     // one packet per socket read, as Minecraft's reader does

	accepts atomic.Int32
	mu      sync.Mutex
	conns   []net.Conn
}

func newFakeServer(t *testing.T, password string, handler func(string) string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln, password: password, handler: handler}
	t.Cleanup(s.close)
	return s
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }

func (s *fakeServer) start() { go s.serve() }

func (s *fakeServer) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		n := int(s.accepts.Add(1))
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		go s.handle(c, n)
	}
}

func (s *fakeServer) close() {
	s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

func (s *fakeServer) handle(c net.Conn, connNo int) {
	defer c.Close()
	cmds := 0
	for {
		f, err := s.readFrame(c)
		if err != nil {
			return
		}
		switch f.Type {
		case TypeAuth:
			if s.sourceAuth {
				WriteFrame(c, Frame{ID: f.ID, Type: TypeResponse}) //nolint:errcheck
			}
			id := f.ID
			if f.Body != s.password {
				id = -1
			}
			WriteFrame(c, Frame{ID: id, Type: TypeAuthResponse}) //nolint:errcheck

		case TypeCommand:
			cmds++
			if s.drop != nil && s.drop(connNo, cmds) {
				return
			}
			if s.silent {
				continue
			}
			for _, p := range s.prelude {
				WriteFrame(c, p) //nolint:errcheck
			}
			s.reply(c, f.ID, s.handler(f.Body))

		case TypeResponse:
			if s.silent {
				continue
			}
			WriteFrame(c, Frame{ID: f.ID, Type: TypeResponse, Body: "Unknown request 0"}) //nolint:errcheck
		}
	}
}

// readFrame reads the next frame. In vanilla mode it does what Minecraft's
// RCON thread does: a single read into a 1460-byte buffer that must hold
// exactly one whole packet, otherwise the connection is closed.
func (s *fakeServer) readFrame(c net.Conn) (Frame, error) {
	if !s.vanilla {
		return ReadFrame(c)
	}
	buf := make([]byte, 1460)
	k, err := c.Read(buf)
	if err != nil {
		return Frame{}, err
	}
	if k < 4 {
		return Frame{}, fmt.Errorf("short read of %d bytes", k)
	}
	if n := int(binary.LittleEndian.Uint32(buf[:4])); k != n+4 {
		return Frame{}, fmt.Errorf("read %d bytes, packet says %d", k, n)
	}
	return ReadFrame(bytes.NewReader(buf[:k]))
}

// reply writes body split into fragment-sized frames, always at least one.
func (s *fakeServer) reply(c net.Conn, id int32, body string) {
	size := s.fragment
	if size <= 0 {
		size = 4096
	}
	for {
		chunk := body
		if len(chunk) > size {
			chunk = body[:size]
		}
		WriteFrame(c, Frame{ID: id, Type: TypeResponse, Body: chunk}) //nolint:errcheck
		body = body[len(chunk):]
		if body == "" {
			return
		}
	}
}

// echo answers every command with a fixed reply per command text.
func echo(replies map[string]string) func(string) string {
	return func(cmd string) string { return replies[cmd] }
}
