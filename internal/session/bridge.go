// Package session runs one gateway session: the command loop on the inputs
// pipe, the outbound image path on the updates pipe and the raw audio
// relay. One Bridge serves exactly one session and one engine instance.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/artsbaro/FreeRDP/internal/clipboard"
	"github.com/artsbaro/FreeRDP/internal/display"
	"github.com/artsbaro/FreeRDP/internal/metrics"
	"github.com/artsbaro/FreeRDP/internal/protocol"
	"github.com/artsbaro/FreeRDP/internal/rdp"
	"github.com/artsbaro/FreeRDP/internal/screenshot"
	"github.com/artsbaro/FreeRDP/internal/transport"
)

// Config assembles one session's collaborators. Clipboard and Metrics are
// optional; everything else is required.
type Config struct {
	SessionID string
	Logger    *slog.Logger
	Pipes     *transport.Pipes
	Engine    rdp.Engine
	Capture   rdp.DisplayCapture
	Input     rdp.InputInjector
	Clipboard rdp.Clipboard
	Metrics   *metrics.Metrics
}

// Bridge wires the three pipes to the engine for one session.
type Bridge struct {
	log       *slog.Logger
	sessionID string

	pipes  *transport.Pipes
	reader *protocol.Reader
	frames *protocol.FrameWriter

	engine  rdp.Engine
	input   rdp.InputInjector
	capture rdp.DisplayCapture

	state    *State
	settings *rdp.Settings
	producer *display.Producer
	clip     *clipboard.Bridge
	shots    *screenshot.Taker
	metrics  *metrics.Metrics

	connectOnce sync.Once
}

func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("session", cfg.SessionID)

	dw, dh := cfg.Capture.DesktopSize()
	state := NewState(dw, dh)
	frames := protocol.NewFrameWriter(cfg.Pipes.Updates)

	producer := display.NewProducer(logger, cfg.Capture, state, frames)
	shots := screenshot.NewTaker(cfg.SessionID)
	producer.Shots = shots
	producer.Metrics = cfg.Metrics

	return &Bridge{
		log:       logger,
		sessionID: cfg.SessionID,
		pipes:     cfg.Pipes,
		reader:    protocol.NewReader(cfg.Pipes.Inputs),
		frames:    frames,
		engine:    cfg.Engine,
		input:     cfg.Input,
		capture:   cfg.Capture,
		state:     state,
		settings:  rdp.NewSettings(),
		producer:  producer,
		clip:      clipboard.NewBridge(logger, cfg.Clipboard),
		shots:     shots,
		metrics:   cfg.Metrics,
	}
}

// Display returns the outbound image producer, driven by the engine's
// update callbacks.
func (b *Bridge) Display() *display.Producer { return b.producer }

// State returns the session's tunable parameters.
func (b *Bridge) State() *State { return b.state }

// Settings returns the engine connection settings accumulated by the
// bootstrap commands.
func (b *Bridge) Settings() *rdp.Settings { return b.settings }

// Clipboard returns the session clipboard cache.
func (b *Bridge) Clipboard() *clipboard.Bridge { return b.clip }

// Run executes the command loop until the gateway sends a close command or
// the inputs pipe fails, then tears down all pipes. The return value is
// the engine's last error code, reported as the process exit code.
func (b *Bridge) Run() int {
	// Publish an empty clipboard before any command: without a client-side
	// value the remote session never enables the paste action.
	b.clip.SeedEmpty()

	for {
		msg, err := b.reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				b.log.Info("inputs pipe closed", "err", err)
			} else {
				b.log.Error("inputs pipe read failed", "err", err)
			}
			break
		}

		if !msg.Known {
			b.metrics.CommandUnknown()
			b.log.Debug("unknown command tag dropped", "tag", msg.Tag)
			continue
		}

		b.metrics.CommandDispatched()
		if !b.dispatch(msg) {
			b.log.Info("close command received")
			break
		}
	}

	// Closing the pipes unblocks any engine thread parked on a write and
	// signals the gateway that the session is over.
	if err := b.pipes.CloseAll(); err != nil {
		b.log.Warn("pipe teardown failed", "err", err)
	}

	return b.engine.LastErrorCode()
}

// RelayAudio forwards one engine audio packet to the audio pipe verbatim.
// Encoding to the session's audio format happens on the gateway.
func (b *Bridge) RelayAudio(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := b.pipes.Audio.Write(data); err != nil {
		return fmt.Errorf("write audio packet: %w", err)
	}
	b.metrics.AudioRelayed(len(data))
	return nil
}

// SendServerClipboard relays remote clipboard text to the gateway,
// truncated at the transfer cap.
func (b *Bridge) SendServerClipboard(text string) error {
	return b.frames.WriteText("clipboard|" + clipboard.Truncate(text))
}

// SendPrintJob tells the gateway a print job finished spooling as a PDF.
func (b *Bridge) SendPrintJob(name string) error {
	return b.frames.WriteText("printjob|" + name + ".pdf")
}

// sendReload asks the browser to reload the page, picking up a new display
// configuration.
func (b *Bridge) sendReload() {
	if err := b.frames.WriteText("reload"); err != nil {
		b.log.Warn("reload notification failed", "err", err)
	}
}

func (b *Bridge) startEngine() {
	b.connectOnce.Do(func() {
		b.log.Info("connecting engine",
			"host", b.settings.Hostname,
			"port", b.settings.Port,
			"vm", b.settings.VMConnect)
		go func() {
			if err := b.engine.Start(b.settings); err != nil {
				b.log.Error("engine terminated", "err", err)
			}
		}()
	})
}
