package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects each channel to a gateway WebSocket endpoint at
// <BaseURL>/remotesession_<id>_<channel>. Binary messages are flattened
// into the byte-stream semantics the rest of the bridge expects.
type WebSocketDialer struct {
	// BaseURL is the gateway endpoint root, e.g. "wss://gw.example.com/pipes".
	BaseURL string
}

// DialSession opens all three channels.
func (d *WebSocketDialer) DialSession(sessionID string) (*Pipes, error) {
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

func (d *WebSocketDialer) dial(sessionID, channel string) (io.ReadWriteCloser, error) {
	url := fmt.Sprintf("%s/%s", d.BaseURL, PipeName(sessionID, channel))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s pipe: %w", channel, err)
	}
	return &wsStream{conn: conn}, nil
}

// wsStream adapts a websocket connection to io.ReadWriteCloser. Each Write
// becomes one binary message; Reads drain messages in order, carrying
// leftover bytes across calls.
type wsStream struct {
	conn *websocket.Conn

	readMu  sync.Mutex
	pending io.Reader // unread tail of the current message

	writeMu sync.Mutex
}

func (s *wsStream) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for {
		if s.pending != nil {
			n, err := s.pending.Read(p)
			if err == io.EOF {
				s.pending = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}

		_, r, err := s.conn.NextReader()
		if err != nil {
			return 0, err
		}
		s.pending = r
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
