package transport

import (
	"fmt"
	"net"
	"path/filepath"
)

// UnixDialer connects to the gateway's per-session unix sockets inside a
// shared directory. Socket paths follow the pipe naming convention:
// <dir>/remotesession_<id>_<channel>.
type UnixDialer struct {
	// Dir is the directory holding the gateway's session sockets.
	Dir string
}

// DialSession opens all three channels. Any failure closes what was opened
// and aborts session start.
func (d *UnixDialer) DialSession(sessionID string) (*Pipes, error) {
	inputs, err := d.dial(sessionID, ChannelInputs)
	if err != nil {
		return nil, err
	}
	updates, err := d.dial(sessionID, ChannelUpdates)
	if err != nil {
		closeBoth(inputs, nil)
		return nil, err
	}
	audio, err := d.dial(sessionID, ChannelAudio)
	if err != nil {
		closeBoth(inputs, updates)
		return nil, err
	}
	return &Pipes{Inputs: inputs, Updates: updates, Audio: audio}, nil
}

func (d *UnixDialer) dial(sessionID, channel string) (net.Conn, error) {
	path := filepath.Join(d.Dir, PipeName(sessionID, channel))
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect %s pipe: %w", channel, err)
	}
	return conn, nil
}
