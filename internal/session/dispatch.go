package session

import (
	"strconv"
	"strings"

	"github.com/artsbaro/FreeRDP/internal/protocol"
	"github.com/artsbaro/FreeRDP/internal/rdp"
	"github.com/artsbaro/FreeRDP/internal/screenshot"
)

// dispatch executes one decoded command. Returns false when the session
// must stop. Malformed arguments never kill the session: the offending
// command is logged and dropped, matching how unknown tags are handled.
func (b *Bridge) dispatch(msg protocol.Message) bool {
	switch msg.Cmd {

	// connection bootstrap
	case protocol.CmdServerAddress:
		b.settings.SetServerAddress(msg.Args)
	case protocol.CmdVMGUID:
		b.settings.SetVMGUID(msg.Args)
	case protocol.CmdUserDomain:
		b.settings.Domain = msg.Args
	case protocol.CmdUserName:
		b.settings.SetUsername(msg.Args)
	case protocol.CmdUserPassword:
		b.settings.Password = msg.Args
	case protocol.CmdStartProgram:
		b.settings.AlternateShell = msg.Args
	case protocol.CmdConnect:
		b.startEngine()

	// browser
	case protocol.CmdBrowserResize:
		// Without display scaling the desktop keeps its size and the
		// browser scrolls; nothing to do and no reload.
		if b.state.ScaleDisplay() {
			if keep, w, h, ok := parseResize(msg.Args); ok {
				b.state.Resize(w, h, keep)
			} else {
				b.dropArgs(msg)
			}
			b.sendReload()
		}
	case protocol.CmdBrowserPulse:
		// browser activity monitoring, handled by the gateway

	// keyboard
	case protocol.CmdKeyUnicode, protocol.CmdKeyScancode:
		b.handleKey(msg)

	// mouse
	case protocol.CmdMouseMove:
		b.handleMouse(msg, msg.Args, rdp.PtrFlagsMove)
	case protocol.CmdMouseLeftButton:
		b.handleMouseButton(msg, rdp.PtrFlagsButton1)
	case protocol.CmdMouseMiddleButton:
		b.handleMouseButton(msg, rdp.PtrFlagsButton3)
	case protocol.CmdMouseRightButton:
		b.handleMouseButton(msg, rdp.PtrFlagsButton2)
	case protocol.CmdMouseWheelUp:
		b.handleMouse(msg, msg.Args, rdp.PtrFlagsWheel|rdp.WheelUpDelta)
	case protocol.CmdMouseWheelDown:
		b.handleMouse(msg, msg.Args, rdp.PtrFlagsWheel|rdp.PtrFlagsWheelNegative|rdp.WheelDownDelta)

	// control
	case protocol.CmdScaleDisplay:
		scale := msg.Args != "0"
		b.state.SetScaleDisplay(scale)
		if scale {
			if keep, w, h, ok := parseResize(msg.Args); ok {
				b.state.Resize(w, h, keep)
			} else {
				b.dropArgs(msg)
			}
		}
		b.sendReload()
	case protocol.CmdReconnectSession:
		// Reconnection itself is driven by the gateway; the bridge only
		// triggers the optional page reload.
		parts := strings.Split(msg.Args, "|")
		if len(parts) == 2 && parts[1] == "1" {
			b.sendReload()
		}
	case protocol.CmdImageEncoding:
		v, err := strconv.Atoi(msg.Args)
		mode := protocol.EncodingMode(v)
		if err != nil || !mode.Valid() {
			b.dropArgs(msg)
			return true
		}
		b.state.SetEncodingMode(mode)
	case protocol.CmdImageQuality:
		v, err := strconv.Atoi(msg.Args)
		if err != nil || v <= 0 {
			b.dropArgs(msg)
			return true
		}
		b.state.SetImageQuality(protocol.Quality(v))
	case protocol.CmdImageQuantity:
		v, err := strconv.Atoi(msg.Args)
		if err != nil || v <= 0 {
			b.dropArgs(msg)
			return true
		}
		b.state.SetImageQuantity(v)
	case protocol.CmdAudioFormat:
		v, err := strconv.Atoi(msg.Args)
		format := protocol.AudioFormat(v)
		if err != nil || format < protocol.AudioNone || format > protocol.AudioMP3 {
			b.dropArgs(msg)
			return true
		}
		b.state.SetAudioFormat(format)
	case protocol.CmdAudioBitrate:
		v, err := strconv.Atoi(msg.Args)
		if err != nil || v <= 0 {
			b.dropArgs(msg)
			return true
		}
		b.state.SetAudioBitrate(v)
	case protocol.CmdScreenshotConfig:
		cfg, ok := parseScreenshotConfig(msg.Args)
		if !ok {
			b.dropArgs(msg)
			return true
		}
		b.shots.Configure(cfg)
	case protocol.CmdStartScreenshots, protocol.CmdStopScreenshots:
		// the gateway schedules shots by sending take-screenshot commands
	case protocol.CmdTakeScreenshot:
		b.shots.Arm()
		if err := b.producer.SendScreen(true); err != nil {
			b.log.Warn("screenshot fullscreen update failed", "err", err)
		}
	case protocol.CmdFullscreenUpdate:
		if err := b.producer.SendScreen(msg.Args == "adaptive"); err != nil {
			b.log.Warn("fullscreen update failed", "err", err)
		}
	case protocol.CmdClipboard:
		if err := b.clip.Set(msg.Args); err != nil {
			b.log.Warn("clipboard update failed", "err", err)
		}
	case protocol.CmdClose:
		return false
	}
	return true
}

func (b *Bridge) dropArgs(msg protocol.Message) {
	b.log.Debug("malformed command args dropped", "tag", msg.Tag, "args", msg.Args)
}

// handleKey decodes `code-pressed` (unicode) or `code-pressed-extended`
// (scancode) and injects the keystroke.
func (b *Bridge) handleKey(msg protocol.Message) {
	parts := strings.Split(msg.Args, "-")
	if len(parts) < 2 {
		b.dropArgs(msg)
		return
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		b.dropArgs(msg)
		return
	}

	flags := rdp.KbdFlagsRelease
	if parts[1] == "1" {
		flags = rdp.KbdFlagsDown
	}

	if msg.Cmd == protocol.CmdKeyUnicode {
		b.input.InjectUnicode(flags, code)
		return
	}

	if len(parts) != 3 {
		b.dropArgs(msg)
		return
	}
	if parts[2] == "1" {
		flags |= rdp.KbdFlagsExtended
	}
	b.input.InjectKeyboard(flags, code)
}

// handleMouseButton strips the leading press indicator ("0" release,
// anything else press) and forwards the position with the button flags.
func (b *Bridge) handleMouseButton(msg protocol.Message, button uint16) {
	if msg.Args == "" {
		b.dropArgs(msg)
		return
	}
	flags := button
	if msg.Args[0] != '0' {
		flags |= rdp.PtrFlagsDown
	}
	b.handleMouse(msg, msg.Args[1:], flags)
}

// handleMouse decodes an `X-Y` position, maps client coordinates back to
// desktop coordinates when scaling is active, and injects the event.
func (b *Bridge) handleMouse(msg protocol.Message, coords string, flags uint16) {
	x, y, ok := parseMouseCoords(coords)
	if !ok {
		b.dropArgs(msg)
		return
	}

	if b.state.ScaleDisplay() {
		cw, ch := b.state.ClientSize()
		dw, dh := b.capture.DesktopSize()
		if cw > 0 && ch > 0 && (cw != dw || ch != dh) {
			x = x * dw / cw
			y = y * dh / ch
		}
	}

	b.input.InjectMouse(flags, x, y)
}

func parseMouseCoords(s string) (x, y int, ok bool) {
	dash := strings.IndexByte(s, '-')
	if dash < 0 {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(s[:dash])
	y, errY := strconv.Atoi(s[dash+1:])
	if errX != nil || errY != nil || x < 0 || y < 0 {
		return 0, 0, false
	}
	return x, y, true
}

// parseResize decodes `keepAspect|WxH`.
func parseResize(args string) (keepAspect bool, width, height int, ok bool) {
	parts := strings.Split(args, "|")
	if len(parts) != 2 {
		return false, 0, 0, false
	}
	sep := strings.IndexByte(parts[1], 'x')
	if sep < 0 {
		return false, 0, 0, false
	}
	width, errW := strconv.Atoi(parts[1][:sep])
	height, errH := strconv.Atoi(parts[1][sep+1:])
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return false, 0, 0, false
	}
	return parts[0] == "1", width, height, true
}

// parseScreenshotConfig decodes `intervalSecs|format|path`.
func parseScreenshotConfig(args string) (screenshot.Config, bool) {
	parts := strings.Split(args, "|")
	if len(parts) != 3 {
		return screenshot.Config{}, false
	}
	interval, errI := strconv.Atoi(parts[0])
	format, errF := strconv.Atoi(parts[1])
	if errI != nil || errF != nil || interval <= 0 {
		return screenshot.Config{}, false
	}
	f := protocol.ImageFormat(format)
	if f != protocol.FormatPNG && f != protocol.FormatJPEG {
		return screenshot.Config{}, false
	}
	return screenshot.Config{
		IntervalSecs: interval,
		Format:       f,
		Path:         parts[2],
	}, true
}
