// Package transport opens the three per-session byte channels (inputs,
// updates, audio) between the bridge and the gateway. The gateway owns the
// channel endpoints; the bridge dials them once at session start and never
// closes them during normal operation. Teardown closes the transport,
// which unblocks any pending read or write with an error, and that error is
// the command loop's exit signal.
package transport

import (
	"fmt"
	"io"
)

// Channel names, appended to the session prefix.
const (
	ChannelInputs  = "inputs"
	ChannelUpdates = "updates"
	ChannelAudio   = "audio"
)

// PipePrefix is the naming prefix shared with the gateway.
const PipePrefix = "remotesession"

// PipeName returns the full channel name for a session,
// e.g. "remotesession_<id>_updates".
func PipeName(sessionID, channel string) string {
	return fmt.Sprintf("%s_%s_%s", PipePrefix, sessionID, channel)
}

// Pipes bundles the three duplex channels of one session.
type Pipes struct {
	Inputs  io.ReadWriteCloser
	Updates io.ReadWriteCloser
	Audio   io.ReadWriteCloser
}

// CloseAll closes every channel, unblocking any goroutine parked in a
// blocking read or write. The first error is returned.
func (p *Pipes) CloseAll() error {
	var first error
	for _, c := range []io.Closer{p.Inputs, p.Updates, p.Audio} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dialer opens all three channels for a session. Implementations: unix
// sockets in a shared directory (default, the gateway host case), WebSocket
// endpoints, and QUIC streams for networked gateways.
type Dialer interface {
	DialSession(sessionID string) (*Pipes, error)
}

// closeBoth is a helper used by dial failure paths: channels opened so far
// are closed before the error is surfaced, so a half-open session never
// leaks descriptors.
func closeBoth(a, b io.Closer) {
	if a != nil {
		a.Close()
	}
	if b != nil {
		b.Close()
	}
}
