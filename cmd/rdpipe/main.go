package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artsbaro/FreeRDP/internal/metrics"
	"github.com/artsbaro/FreeRDP/internal/rdp"
	"github.com/artsbaro/FreeRDP/internal/session"
	"github.com/artsbaro/FreeRDP/internal/transport"
	"github.com/artsbaro/FreeRDP/internal/version"
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 && (args[0] == "version" || args[0] == "--version") {
		fmt.Printf("rdpipe %s (%s)\n", version.VERSION, version.Commit)
		os.Exit(0)
	}

	if len(args) > 0 && args[0] == "demo" {
		runDemo(args[1:])
		return
	}

	runBridge(args)
}

// runBridge connects the three session pipes to a gateway and serves the
// synthetic engine over them. The production engine links the session
// package directly; this binary exists for gateway integration testing.
func runBridge(args []string) {
	fs := flag.NewFlagSet("rdpipe", flag.ExitOnError)
	sessionID := fs.String("session", "", "session ID (default: random)")
	pipesDir := fs.String("pipes-dir", "", "directory holding the gateway's unix sockets")
	wsURL := fs.String("ws", "", "gateway websocket base URL (ws://host:port/path)")
	quicAddr := fs.String("quic", "", "gateway QUIC address (host:port)")
	quicInsecure := fs.Bool("quic-insecure", false, "skip TLS certificate verification for QUIC")
	metricsAddr := fs.String("metrics", "", "prometheus listen address (empty = disabled)")
	logPath := fs.String("log", "", "log file (default: stderr)")
	debug := fs.Bool("debug", false, "debug logging")
	width := fs.Int("width", 1024, "synthetic desktop width")
	height := fs.Int("height", 768, "synthetic desktop height")
	fs.Parse(args)

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	logger := newLogger(*logPath, *debug)

	dialer, err := pickDialer(*pipesDir, *wsURL, *quicAddr, *quicInsecure)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	pipes, err := dialer.DialSession(*sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting session pipes: %v\n", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "err", err)
			}
		}()
	}

	engine := rdp.NewTestPattern(*width, *height)
	bridge := session.New(session.Config{
		SessionID: *sessionID,
		Logger:    logger,
		Pipes:     pipes,
		Engine:    engine,
		Capture:   engine,
		Input:     engine,
		Clipboard: engine,
		Metrics:   m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Closing the pipes is the only way to unblock the command loop.
	go func() {
		<-ctx.Done()
		pipes.CloseAll()
	}()

	go damageLoop(ctx, engine, bridge)

	logger.Info("session bridge running", "session", *sessionID)
	code := bridge.Run()
	engine.Shutdown()
	os.Exit(code)
}

// damageLoop animates the synthetic desktop and pushes its damaged regions
// through the update pipeline, with a periodic cursor refresh.
func damageLoop(ctx context.Context, engine *rdp.TestPattern, bridge *session.Bridge) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !engine.Started() {
			continue
		}
		r := engine.Advance()
		if err := bridge.Display().SendRegion(r); err != nil {
			return
		}
		if n++; n%20 == 0 {
			if err := bridge.Display().SendCursor(); err != nil {
				return
			}
		}
	}
}

func pickDialer(pipesDir, wsURL, quicAddr string, quicInsecure bool) (transport.Dialer, error) {
	set := 0
	for _, s := range []string{pipesDir, wsURL, quicAddr} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of -pipes-dir, -ws or -quic is required")
	}

	switch {
	case pipesDir != "":
		return &transport.UnixDialer{Dir: pipesDir}, nil
	case wsURL != "":
		return &transport.WebSocketDialer{BaseURL: wsURL}, nil
	default:
		return &transport.QUICDialer{
			Addr:      quicAddr,
			TLSConfig: &tls.Config{InsecureSkipVerify: quicInsecure},
		}, nil
	}
}

func newLogger(path string, debug bool) *slog.Logger {
	w := os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v\n", path, err)
		} else {
			w = f
		}
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
