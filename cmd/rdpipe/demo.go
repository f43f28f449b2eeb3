package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/artsbaro/FreeRDP/internal/protocol"
	"github.com/artsbaro/FreeRDP/internal/rdp"
	"github.com/artsbaro/FreeRDP/internal/session"
	"github.com/artsbaro/FreeRDP/internal/transport"
)

// runDemo runs a complete session in process: a scripted gateway on one end
// of in-memory pipes, the bridge with the synthetic engine on the other.
// Decoded update frames are printed to stdout.
func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	duration := fs.Duration("duration", 2*time.Second, "how long to animate before closing")
	debug := fs.Bool("debug", false, "debug logging")
	fs.Parse(args)

	inputsGW, inputsBR := net.Pipe()
	updatesGW, updatesBR := net.Pipe()
	audioGW, audioBR := net.Pipe()

	engine := rdp.NewTestPattern(640, 480)
	bridge := session.New(session.Config{
		SessionID: "demo",
		Logger:    newLogger("", *debug),
		Pipes:     &transport.Pipes{Inputs: inputsBR, Updates: updatesBR, Audio: audioBR},
		Engine:    engine,
		Capture:   engine,
		Input:     engine,
		Clipboard: engine,
	})

	// scripted gateway
	go func() {
		send := func(cmd protocol.Command, cmdArgs string) {
			if _, err := inputsGW.Write(protocol.AppendCommand(nil, cmd, cmdArgs)); err != nil {
				return
			}
		}
		send(protocol.CmdServerAddress, "demo.local:3389")
		send(protocol.CmdUserName, `DEMO\user`)
		send(protocol.CmdConnect, "")
		send(protocol.CmdScaleDisplay, "1|320x240")
		send(protocol.CmdImageQuantity, "25")
		send(protocol.CmdFullscreenUpdate, "adaptive")
		send(protocol.CmdClipboard, "demo clipboard text")
		time.Sleep(*duration)
		send(protocol.CmdClose, "")
	}()

	go printUpdates(updatesGW)
	go io.Copy(io.Discard, audioGW)

	ctx, cancel := context.WithCancel(context.Background())
	go damageLoop(ctx, engine, bridge)

	code := bridge.Run()
	cancel()
	engine.Shutdown()
	fmt.Printf("demo finished, exit code %d\n", code)
	os.Exit(code)
}

// printUpdates decodes the updates pipe and prints one line per frame.
func printUpdates(r io.Reader) {
	for {
		var header [protocol.LengthHeaderSize]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return
		}
		n := binary.LittleEndian.Uint32(header[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}

		if n >= 4 && binary.LittleEndian.Uint32(payload) == protocol.ImageTag {
			le := binary.LittleEndian
			fmt.Printf("image seq=%d pos=(%d,%d) size=%dx%d format=%s quality=%d fullscreen=%d payload=%dB\n",
				le.Uint32(payload[4:8]),
				le.Uint32(payload[8:12]), le.Uint32(payload[12:16]),
				le.Uint32(payload[16:20]), le.Uint32(payload[20:24]),
				protocol.ImageFormat(le.Uint32(payload[24:28])),
				le.Uint32(payload[28:32]),
				le.Uint32(payload[32:36]),
				int(n)-protocol.ImageMetaSize)
			continue
		}

		text, err := protocol.DecodeUTF16(payload)
		if err != nil {
			fmt.Printf("undecodable text frame (%d bytes)\n", n)
			continue
		}
		fmt.Printf("text %q\n", text)
	}
}
