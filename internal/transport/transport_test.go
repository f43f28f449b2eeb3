package transport

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

func TestPipeName(t *testing.T) {
	got := PipeName("abc123", ChannelUpdates)
	if got != "remotesession_abc123_updates" {
		t.Fatalf("PipeName = %q", got)
	}
}

// gatewaySockets listens on the three session sockets and echoes nothing;
// it records what each channel receives.
func gatewaySockets(t *testing.T, dir, sessionID string) map[string]*net.UnixListener {
	t.Helper()
	listeners := make(map[string]*net.UnixListener)
	for _, ch := range []string{ChannelInputs, ChannelUpdates, ChannelAudio} {
		path := filepath.Join(dir, PipeName(sessionID, ch))
		addr, err := net.ResolveUnixAddr("unix", path)
		if err != nil {
			t.Fatalf("resolve %s: %v", path, err)
		}
		ln, err := net.ListenUnix("unix", addr)
		if err != nil {
			t.Fatalf("listen %s: %v", path, err)
		}
		t.Cleanup(func() { ln.Close() })
		listeners[ch] = ln
	}
	return listeners
}

func TestUnixDialerOpensAllChannels(t *testing.T) {
	dir := t.TempDir()
	listeners := gatewaySockets(t, dir, "s1")

	var wg sync.WaitGroup
	received := make(map[string][]byte)
	var mu sync.Mutex
	for ch, ln := range listeners {
		wg.Add(1)
		go func(ch string, ln *net.UnixListener) {
			defer wg.Done()
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			data, _ := io.ReadAll(conn)
			mu.Lock()
			received[ch] = data
			mu.Unlock()
		}(ch, ln)
	}

	d := &UnixDialer{Dir: dir}
	pipes, err := d.DialSession("s1")
	if err != nil {
		t.Fatalf("DialSession: %v", err)
	}

	pipes.Inputs.Write([]byte("in"))
	pipes.Updates.Write([]byte("up"))
	pipes.Audio.Write([]byte("au"))
	pipes.CloseAll()
	wg.Wait()

	for ch, want := range map[string]string{
		ChannelInputs:  "in",
		ChannelUpdates: "up",
		ChannelAudio:   "au",
	} {
		if string(received[ch]) != want {
			t.Errorf("%s channel received %q, want %q", ch, received[ch], want)
		}
	}
}

func TestUnixDialerFailsWhenChannelMissing(t *testing.T) {
	dir := t.TempDir()
	// Only the inputs socket exists; updates must fail and inputs must not leak.
	path := filepath.Join(dir, PipeName("s2", ChannelInputs))
	addr, _ := net.ResolveUnixAddr("unix", path)
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	d := &UnixDialer{Dir: dir}
	if _, err := d.DialSession("s2"); err == nil {
		t.Fatal("DialSession succeeded with a missing channel")
	} else if !strings.Contains(err.Error(), "updates") {
		t.Errorf("error %q does not name the failing channel", err)
	}
}

func TestCloseAllUnblocksRead(t *testing.T) {
	dir := t.TempDir()
	listeners := gatewaySockets(t, dir, "s3")
	for _, ln := range listeners {
		go func(ln *net.UnixListener) {
			// Accept and keep the peer open without sending anything; the
			// test closes the bridge side. The fd is reclaimed at exit.
			ln.Accept()
		}(ln)
	}

	d := &UnixDialer{Dir: dir}
	pipes, err := d.DialSession("s3")
	if err != nil {
		t.Fatalf("DialSession: %v", err)
	}

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 4)
		_, err := io.ReadFull(pipes.Inputs, buf)
		readErr <- err
	}()

	pipes.CloseAll()

	if err := <-readErr; err == nil {
		t.Fatal("blocked read returned nil after CloseAll")
	}
}

func TestWebSocketStreamSemantics(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/pipes/remotesession_s4_") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// Two messages that the stream reader must concatenate.
		ws.WriteMessage(websocket.BinaryMessage, []byte("hello "))
		ws.WriteMessage(websocket.BinaryMessage, []byte("world"))
		// Then echo one message back from the client.
		if _, msg, err := ws.ReadMessage(); err == nil {
			ws.WriteMessage(websocket.BinaryMessage, msg)
		}
	}))
	defer srv.Close()

	d := &WebSocketDialer{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/pipes"}
	stream, err := d.dial("s4", ChannelInputs)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stream.Close()

	buf := make([]byte, 11)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "hello world" {
		t.Errorf("read %q, want %q", buf, "hello world")
	}

	if _, err := stream.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	echo := make([]byte, 4)
	if _, err := io.ReadFull(stream, echo); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if !bytes.Equal(echo, []byte("ping")) {
		t.Errorf("echo = %q", echo)
	}
}
