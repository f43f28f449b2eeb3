package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// Message is one decoded inputs-pipe frame.
type Message struct {
	Tag  string  // raw 3-character tag, kept for logging
	Cmd  Command // valid only when Known
	Args string  // everything after the tag
	// Known is false for tags outside the command table. Such frames are
	// consumed from the stream but must not be dispatched.
	Known bool
}

// Reader decodes length-prefixed command frames from the inputs pipe.
//
// The stream alternates between a 4-byte little-endian length and a payload
// of exactly that many bytes. Reads are blocking and exact-length; any read
// failure is fatal to the command loop (the transport is the only exit
// signal besides an explicit close command).
type Reader struct {
	r io.Reader
}

// NewReader wraps the inputs-pipe stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next blocks until one full frame is read, then decodes it. Unknown tags
// are returned with Known=false so the caller can drop them silently. Any
// I/O error, including io.EOF on peer close, terminates the session.
func (r *Reader) Next() (Message, error) {
	var header [LengthHeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return Message{}, err
	}

	n := binary.LittleEndian.Uint32(header[:])
	if n > MaxPayloadSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Message{}, err
	}

	// A payload shorter than a command tag cannot be dispatched. It is
	// consumed and surfaced like an unknown tag so the stream stays in
	// sync; only an oversized length is treated as corruption.
	if n < TagSize {
		return Message{Tag: string(payload)}, nil
	}

	tag := string(payload[:TagSize])
	cmd, known := LookupCommand(tag)
	return Message{
		Tag:   tag,
		Cmd:   cmd,
		Args:  string(payload[TagSize:]),
		Known: known,
	}, nil
}

// AppendCommand appends one framed command to b. Used by the synthetic
// gateway in tests and by the demo harness; the production gateway sits on
// the other side of the pipe.
func AppendCommand(b []byte, cmd Command, args string) []byte {
	tag := tagByCommand[cmd]
	var header [LengthHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(TagSize+len(args)))
	b = append(b, header[:]...)
	b = append(b, tag...)
	return append(b, args...)
}
