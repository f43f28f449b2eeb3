package rdp

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
)

// TestPattern is a synthetic engine rendering a gradient desktop with a
// moving block. It implements DisplayCapture, InputInjector, Clipboard and
// Engine, and exists so the full capture/encode/send pipeline can run
// without a remote server: integration tests and the demo subcommand use
// it in place of the real engine.
type TestPattern struct {
	width, height int

	mu      sync.Mutex
	frame   *image.RGBA
	blockX  int
	started chan struct{}
	stop    chan struct{}

	lastError atomic.Int32

	// Recorded injections, readable by tests.
	MouseEvents    []MouseEvent
	KeyboardEvents []KeyboardEvent

	clipboardActive  bool
	ClipboardNotices int
}

// MouseEvent is one recorded InjectMouse call.
type MouseEvent struct {
	Flags uint16
	X, Y  int
}

// KeyboardEvent is one recorded InjectKeyboard/InjectUnicode call.
type KeyboardEvent struct {
	Flags   uint16
	Code    int
	Unicode bool
}

// NewTestPattern creates a synthetic desktop of the given size.
func NewTestPattern(width, height int) *TestPattern {
	tp := &TestPattern{
		width:           width,
		height:          height,
		started:         make(chan struct{}),
		stop:            make(chan struct{}),
		clipboardActive: true,
	}
	tp.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	tp.render()
	return tp
}

func (tp *TestPattern) render() {
	for y := 0; y < tp.height; y++ {
		for x := 0; x < tp.width; x++ {
			tp.frame.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / tp.width),
				G: uint8(y * 255 / tp.height),
				B: 0x80,
				A: 0xff,
			})
		}
	}
	// moving block, gives region updates something to damage
	for y := 10; y < 42 && y < tp.height; y++ {
		for x := tp.blockX; x < tp.blockX+32 && x < tp.width; x++ {
			tp.frame.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}
}

// Advance moves the block one step and returns the damaged rectangle.
func (tp *TestPattern) Advance() image.Rectangle {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	old := tp.blockX
	tp.blockX = (tp.blockX + 8) % max(tp.width-32, 1)
	tp.render()
	return image.Rect(min(old, tp.blockX), 10, min(max(old, tp.blockX)+32, tp.width), 42)
}

// DesktopSize implements DisplayCapture.
func (tp *TestPattern) DesktopSize() (int, int) { return tp.width, tp.height }

// CaptureRegion implements DisplayCapture.
func (tp *TestPattern) CaptureRegion(r image.Rectangle) (*image.RGBA, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	r = r.Intersect(tp.frame.Bounds())
	if r.Empty() {
		return nil, errors.New("capture region outside desktop")
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.SetRGBA(x, y, tp.frame.RGBAAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out, nil
}

// CaptureCursor implements DisplayCapture. The shape is a small arrow on a
// blue mask, mirroring what a masked cursor extraction produces.
func (tp *TestPattern) CaptureCursor() (*image.RGBA, image.Point, [3]uint8, error) {
	const size = 16
	mask := [3]uint8{0, 0, 255}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x <= y && x < size-y {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			} else {
				img.SetRGBA(x, y, color.RGBA{B: 0xff, A: 0xff})
			}
		}
	}
	return img, image.Point{X: 0, Y: 0}, mask, nil
}

// InjectMouse implements InputInjector.
func (tp *TestPattern) InjectMouse(flags uint16, x, y int) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.MouseEvents = append(tp.MouseEvents, MouseEvent{Flags: flags, X: x, Y: y})
}

// InjectKeyboard implements InputInjector.
func (tp *TestPattern) InjectKeyboard(flags uint16, code int) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.KeyboardEvents = append(tp.KeyboardEvents, KeyboardEvent{Flags: flags, Code: code})
}

// InjectUnicode implements InputInjector.
func (tp *TestPattern) InjectUnicode(flags uint16, code int) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.KeyboardEvents = append(tp.KeyboardEvents, KeyboardEvent{Flags: flags, Code: code, Unicode: true})
}

// Active implements Clipboard.
func (tp *TestPattern) Active() bool { return tp.clipboardActive }

// Invalidate implements Clipboard.
func (tp *TestPattern) Invalidate() error {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.ClipboardNotices++
	return nil
}

// RequestData implements Clipboard.
func (tp *TestPattern) RequestData() error { return nil }

// Start implements Engine: it blocks until Shutdown.
func (tp *TestPattern) Start(settings *Settings) error {
	close(tp.started)
	<-tp.stop
	return nil
}

// Started reports whether Start has been entered.
func (tp *TestPattern) Started() bool {
	select {
	case <-tp.started:
		return true
	default:
		return false
	}
}

// Shutdown unblocks Start.
func (tp *TestPattern) Shutdown() {
	select {
	case <-tp.stop:
	default:
		close(tp.stop)
	}
}

// SetLastError records the error code reported by LastErrorCode.
func (tp *TestPattern) SetLastError(code int) { tp.lastError.Store(int32(code)) }

// LastErrorCode implements Engine.
func (tp *TestPattern) LastErrorCode() int { return int(tp.lastError.Load()) }
