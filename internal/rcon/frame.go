package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Frame types.
const (
	TypeResponse     int32 = 0
	TypeCommand      int32 = 2
	TypeAuthResponse int32 = 2
	TypeAuth         int32 = 3
)

const (
	// headerLen covers the id and type fields that follow the length prefix.
	headerLen = 8

	// minFrameLen is the smallest legal value of the length prefix: header
	// plus the body terminator and the trailing pad byte.
	minFrameLen = headerLen + 2

	// MaxCommandLen is the longest command body Minecraft accepts.
	MaxCommandLen = 1446

	// maxFrameLen bounds incoming frames. Minecraft fragments replies at 4096
	// bytes of body; anything far beyond that is a desynchronised stream.
	maxFrameLen = 64 * 1024
)

// Frame is one length-prefixed protocol message.
type Frame struct {
	ID   int32
	Type int32
	Body string
}

// AppendBinary appends the wire encoding of f to b.
func (f Frame) AppendBinary(b []byte) ([]byte, error) {
	if strings.IndexByte(f.Body, 0) >= 0 {
		return b, fmt.Errorf("%w: body contains a null byte", ErrProtocol)
	}
	size := headerLen + len(f.Body) + 2
	b = binary.LittleEndian.AppendUint32(b, uint32(size))
	b = binary.LittleEndian.AppendUint32(b, uint32(f.ID))
	b = binary.LittleEndian.AppendUint32(b, uint32(f.Type))
	b = append(b, f.Body...)
	return append(b, 0, 0), nil
}

// WriteFrame encodes f and writes it to w in a single call.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := f.AppendBinary(nil)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadFrame reads exactly one frame from r. Transport errors are returned
// unwrapped so the caller can classify them; malformed frames wrap ErrProtocol.
func ReadFrame(r io.Reader) (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Frame{}, err
	}
	size := int32(binary.LittleEndian.Uint32(prefix[:]))
	if size < minFrameLen || size > maxFrameLen {
		return Frame{}, fmt.Errorf("%w: frame length %d out of range", ErrProtocol, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}
	if buf[size-2] != 0 || buf[size-1] != 0 {
		return Frame{}, fmt.Errorf("%w: frame is not null terminated", ErrProtocol)
	}

	return Frame{
		ID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Body: string(buf[headerLen : size-2]),
	}, nil
}
