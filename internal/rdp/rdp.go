// Package rdp defines the surface of the remote-desktop engine the bridge
// drives: display capture, input injection, clipboard channel and engine
// lifecycle. The engine itself (protocol stack, pixel capture, channel
// plumbing) lives outside this module.
package rdp

import "image"

// Pointer event flags, RDP wire values (MS-RDPBCGR 2.2.8.1.1.3.1.1.3).
const (
	PtrFlagsWheel         uint16 = 0x0200
	PtrFlagsWheelNegative uint16 = 0x0100
	PtrFlagsMove          uint16 = 0x0800
	PtrFlagsDown          uint16 = 0x8000
	PtrFlagsButton1       uint16 = 0x1000 // left
	PtrFlagsButton2       uint16 = 0x2000 // right
	PtrFlagsButton3       uint16 = 0x4000 // middle
)

// Wheel rotation deltas carried alongside the wheel flags.
const (
	WheelUpDelta   uint16 = 0x0078
	WheelDownDelta uint16 = 0x0088
)

// Keyboard event flags (MS-RDPBCGR 2.2.8.1.1.3.1.1.1).
const (
	KbdFlagsExtended uint16 = 0x0100
	KbdFlagsDown     uint16 = 0x4000
	KbdFlagsRelease  uint16 = 0x8000
)

// DisplayCapture extracts pixels from the engine's primary surface.
type DisplayCapture interface {
	// DesktopSize returns the remote desktop dimensions.
	DesktopSize() (width, height int)

	// CaptureRegion copies the given desktop rectangle into an RGBA image.
	CaptureRegion(r image.Rectangle) (*image.RGBA, error)

	// CaptureCursor returns the current pointer shape, its hotspot, and the
	// mask color marking pixels that must become transparent.
	CaptureCursor() (img *image.RGBA, hotspot image.Point, mask [3]uint8, err error)
}

// InputInjector delivers user input into the remote session.
type InputInjector interface {
	InjectMouse(flags uint16, x, y int)
	InjectKeyboard(flags uint16, code int)
	InjectUnicode(flags uint16, code int)
}

// Clipboard is the engine's clipboard virtual channel. It may be absent
// for the whole session (Active returns false); the bridge then only
// caches text locally.
type Clipboard interface {
	Active() bool
	// Invalidate tells the remote end the clipboard changed, so the next
	// paste re-fetches the cached value instead of serving stale data.
	Invalidate() error
	// RequestData asks the remote end for its clipboard contents.
	RequestData() error
}

// Engine is the session engine lifecycle. Start blocks for the lifetime of
// the session connection and is run on its own goroutine by the connect
// command. LastErrorCode is the engine's last recorded error, reported as
// the process exit code on teardown.
type Engine interface {
	Start(settings *Settings) error
	LastErrorCode() int
}
