package display

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/artsbaro/FreeRDP/internal/protocol"
)

type fakeSettings struct {
	mode     protocol.EncodingMode
	quality  protocol.Quality
	quantity int
	scale    bool
	cw, ch   int
}

func (s *fakeSettings) EncodingMode() protocol.EncodingMode { return s.mode }
func (s *fakeSettings) ImageQuality() protocol.Quality      { return s.quality }
func (s *fakeSettings) ImageQuantity() int                  { return s.quantity }
func (s *fakeSettings) ScaleDisplay() bool                  { return s.scale }
func (s *fakeSettings) ClientSize() (int, int)              { return s.cw, s.ch }

type fakeCapture struct {
	w, h      int
	cursor    *image.RGBA
	hotspot   image.Point
	mask      [3]uint8
	cursorErr error
}

func (c *fakeCapture) DesktopSize() (int, int) { return c.w, c.h }

func (c *fakeCapture) CaptureRegion(r image.Rectangle) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	return img, nil
}

func (c *fakeCapture) CaptureCursor() (*image.RGBA, image.Point, [3]uint8, error) {
	return c.cursor, c.hotspot, c.mask, c.cursorErr
}

// sentFrame is one decoded updates-pipe image frame.
type sentFrame struct {
	seq        uint32
	x, y, w, h int
	format     protocol.ImageFormat
	quality    protocol.Quality
	fullscreen bool
	payload    int
}

func decodeFrames(t *testing.T, buf *bytes.Buffer) []sentFrame {
	t.Helper()
	var frames []sentFrame
	for buf.Len() > 0 {
		var length uint32
		if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
			t.Fatalf("read frame length: %v", err)
		}
		meta := make([]byte, protocol.ImageMetaSize)
		if _, err := io.ReadFull(buf, meta); err != nil {
			t.Fatalf("read frame meta: %v", err)
		}
		le := binary.LittleEndian
		if tag := le.Uint32(meta[0:4]); tag != protocol.ImageTag {
			t.Fatalf("frame tag = %d, want %d", tag, protocol.ImageTag)
		}
		payload := int(length) - protocol.ImageMetaSize
		if _, err := io.CopyN(io.Discard, buf, int64(payload)); err != nil {
			t.Fatalf("skip payload: %v", err)
		}
		frames = append(frames, sentFrame{
			seq:        le.Uint32(meta[4:8]),
			x:          int(le.Uint32(meta[8:12])),
			y:          int(le.Uint32(meta[12:16])),
			w:          int(le.Uint32(meta[16:20])),
			h:          int(le.Uint32(meta[20:24])),
			format:     protocol.ImageFormat(le.Uint32(meta[24:28])),
			quality:    protocol.Quality(le.Uint32(meta[28:32])),
			fullscreen: le.Uint32(meta[32:36]) == 1,
			payload:    payload,
		})
	}
	return frames
}

func newTestProducer(settings *fakeSettings, capture *fakeCapture) (*Producer, *bytes.Buffer) {
	var buf bytes.Buffer
	fw := protocol.NewFrameWriter(&buf)
	p := NewProducer(slog.New(slog.DiscardHandler), capture, settings, fw)
	return p, &buf
}

func TestAccumulatorUnion(t *testing.T) {
	var acc Accumulator
	if _, ok := acc.Flush(); ok {
		t.Fatal("empty accumulator flushed a region")
	}

	acc.Extend(image.Rect(10, 10, 20, 20))
	acc.Extend(image.Rect(30, 5, 40, 15))
	if !acc.Pending() {
		t.Fatal("Pending() false after Extend")
	}

	got, ok := acc.Flush()
	if !ok {
		t.Fatal("Flush returned no region")
	}
	if want := image.Rect(10, 5, 40, 20); got != want {
		t.Errorf("union = %v, want %v", got, want)
	}
	if acc.Pending() {
		t.Error("Pending() true after Flush")
	}
}

func TestAccumulatorOriginRegionIsPending(t *testing.T) {
	// A region touching (0,0) must not read as "nothing buffered".
	var acc Accumulator
	acc.Extend(image.Rect(0, 0, 1, 1))
	if !acc.Pending() {
		t.Fatal("origin region not pending")
	}
	got, ok := acc.Flush()
	if !ok || got != image.Rect(0, 0, 1, 1) {
		t.Errorf("Flush = %v, %v", got, ok)
	}
}

func TestThrottleSamplesEveryFourth(t *testing.T) {
	// quantity 25 -> one update per 100/25 = 4 events.
	var th Throttle
	regions := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(50, 50, 60, 60),
		image.Rect(20, 5, 30, 15),
		image.Rect(40, 40, 45, 45),
	}

	for i, r := range regions[:3] {
		if _, ok := th.Admit(r, 25); ok {
			t.Fatalf("event %d admitted before sample point", i+1)
		}
	}
	got, ok := th.Admit(regions[3], 25)
	if !ok {
		t.Fatal("4th event not admitted")
	}
	if want := image.Rect(0, 0, 60, 60); got != want {
		t.Errorf("consolidated region = %v, want %v", got, want)
	}

	// Accumulator reset: next batch starts fresh.
	for i := 0; i < 3; i++ {
		if _, ok := th.Admit(image.Rect(1, 1, 2, 2), 25); ok {
			t.Fatalf("event %d of second batch admitted early", i+1)
		}
	}
	got, _ = th.Admit(image.Rect(1, 1, 2, 2), 25)
	if want := image.Rect(1, 1, 2, 2); got != want {
		t.Errorf("second batch region = %v, want %v", got, want)
	}
}

func TestThrottleDisengagedPassesEverything(t *testing.T) {
	var th Throttle
	for i := 0; i < 10; i++ {
		r := image.Rect(i, i, i+1, i+1)
		got, ok := th.Admit(r, 100)
		if !ok || got != r {
			t.Fatalf("event %d: Admit = %v, %v, want passthrough", i, got, ok)
		}
	}
}

func TestSendRegionThrottled(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingPNG, quality: protocol.QualityHigh, quantity: 25}
	capture := &fakeCapture{w: 200, h: 100}
	p, buf := newTestProducer(settings, capture)

	for i := 0; i < 8; i++ {
		if err := p.SendRegion(image.Rect(10*i, 0, 10*i+10, 10)); err != nil {
			t.Fatalf("SendRegion %d: %v", i, err)
		}
	}

	frames := decodeFrames(t, buf)
	if len(frames) != 2 {
		t.Fatalf("frames written = %d, want 2 of 8 events", len(frames))
	}

	// First frame consolidates events 0..3: x [0,40), second 4..7: x [40,80).
	if f := frames[0]; f.x != 0 || f.y != 0 || f.w != 40 || f.h != 10 {
		t.Errorf("frame 0 region = (%d,%d %dx%d), want (0,0 40x10)", f.x, f.y, f.w, f.h)
	}
	if f := frames[1]; f.x != 40 || f.w != 40 {
		t.Errorf("frame 1 region = (%d,%d %dx%d), want (40,0 40x10)", f.x, f.y, f.w, f.h)
	}
	if frames[0].seq+1 != frames[1].seq {
		t.Errorf("sequence not consecutive: %d then %d", frames[0].seq, frames[1].seq)
	}
	for i, f := range frames {
		if f.fullscreen {
			t.Errorf("frame %d marked fullscreen", i)
		}
		if f.format != protocol.FormatPNG {
			t.Errorf("frame %d format = %v, want png", i, f.format)
		}
	}
}

func TestSendRegionOutsideDesktopDropped(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingPNG, quantity: 100}
	capture := &fakeCapture{w: 100, h: 100}
	p, buf := newTestProducer(settings, capture)

	for _, r := range []image.Rectangle{
		image.Rect(90, 90, 110, 110), // spills over the edge
		image.Rect(5, 5, 5, 20),      // zero width
		image.Rect(-10, 0, 10, 10),   // negative origin
	} {
		if err := p.SendRegion(r); err != nil {
			t.Fatalf("SendRegion(%v): %v", r, err)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes written for invalid regions", buf.Len())
	}
}

func TestSendScreenBypassesThrottle(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingJPEG, quality: protocol.QualityLow, quantity: 5}
	capture := &fakeCapture{w: 64, h: 48}
	p, buf := newTestProducer(settings, capture)

	for i := 0; i < 3; i++ {
		if err := p.SendScreen(false); err != nil {
			t.Fatalf("SendScreen %d: %v", i, err)
		}
	}

	frames := decodeFrames(t, buf)
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want every fullscreen update sent", len(frames))
	}
	for i, f := range frames {
		if !f.fullscreen {
			t.Errorf("frame %d not marked fullscreen", i)
		}
		if f.w != 64 || f.h != 48 {
			t.Errorf("frame %d size = %dx%d, want 64x48", i, f.w, f.h)
		}
		if f.quality != protocol.QualityLow {
			t.Errorf("frame %d quality = %v, want client-set Low", i, f.quality)
		}
	}
}

func TestSendScreenAdaptiveBoostsQuality(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingJPEG, quality: protocol.QualityLow, quantity: 100}
	capture := &fakeCapture{w: 32, h: 32}
	p, buf := newTestProducer(settings, capture)

	if err := p.SendScreen(true); err != nil {
		t.Fatalf("SendScreen: %v", err)
	}
	frames := decodeFrames(t, buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].quality != protocol.QualityHigher {
		t.Errorf("quality = %v, want Higher for adaptive fullscreen", frames[0].quality)
	}
}

func TestSendRegionScalesToClientSize(t *testing.T) {
	settings := &fakeSettings{
		mode: protocol.EncodingPNG, quantity: 100,
		scale: true, cw: 100, ch: 50,
	}
	capture := &fakeCapture{w: 200, h: 100}
	p, buf := newTestProducer(settings, capture)

	if err := p.SendRegion(image.Rect(40, 20, 80, 60)); err != nil {
		t.Fatalf("SendRegion: %v", err)
	}
	frames := decodeFrames(t, buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	f := frames[0]
	if f.x != 20 || f.y != 10 || f.w != 20 || f.h != 20 {
		t.Errorf("scaled region = (%d,%d %dx%d), want (20,10 20x20)", f.x, f.y, f.w, f.h)
	}
}

func TestSendCursor(t *testing.T) {
	cursor := image.NewRGBA(image.Rect(0, 0, 4, 4))
	mask := [3]uint8{0xff, 0x00, 0xff}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x == y {
				cursor.SetRGBA(x, y, color.RGBA{A: 0xff}) // visible diagonal
			} else {
				cursor.SetRGBA(x, y, color.RGBA{R: 0xff, B: 0xff, A: 0xff}) // mask color
			}
		}
	}

	settings := &fakeSettings{mode: protocol.EncodingJPEG, quality: protocol.QualityLow, quantity: 5}
	capture := &fakeCapture{w: 64, h: 48, cursor: cursor, hotspot: image.Pt(1, 2), mask: mask}
	p, buf := newTestProducer(settings, capture)

	if err := p.SendCursor(); err != nil {
		t.Fatalf("SendCursor: %v", err)
	}
	frames := decodeFrames(t, buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 despite engaged throttle", len(frames))
	}
	f := frames[0]
	if f.format != protocol.FormatCursor {
		t.Errorf("format = %v, want cursor", f.format)
	}
	if f.quality != protocol.QualityHighest {
		t.Errorf("quality = %v, want Highest", f.quality)
	}
	if f.x != 1 || f.y != 2 {
		t.Errorf("hotspot = (%d,%d), want (1,2)", f.x, f.y)
	}
	if f.w != 4 || f.h != 4 {
		t.Errorf("size = %dx%d, want 4x4", f.w, f.h)
	}
}

func TestSendCursorSkipsUnusableShapes(t *testing.T) {
	// Fully opaque shape: no transparent pixels -> not a real cursor capture.
	opaque := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			opaque.SetRGBA(x, y, color.RGBA{R: 0x10, A: 0xff})
		}
	}

	settings := &fakeSettings{mode: protocol.EncodingPNG, quantity: 100}
	capture := &fakeCapture{w: 64, h: 48, cursor: opaque, mask: [3]uint8{0xff, 0x00, 0xff}}
	p, buf := newTestProducer(settings, capture)

	if err := p.SendCursor(); err != nil {
		t.Fatalf("SendCursor: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes written for an unusable cursor", buf.Len())
	}
}

func TestPrepareCursorYellowBecomesBlack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 0xff, G: 0xff, A: 0xff})       // pure yellow
	img.SetRGBA(1, 0, color.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff}) // mask color

	if !prepareCursor(img, [3]uint8{0xaa, 0xbb, 0xcc}) {
		t.Fatal("cursor with transparent and visible pixels rejected")
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{A: 0xff}) {
		t.Errorf("yellow pixel = %v, want opaque black", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{}) {
		t.Errorf("mask pixel = %v, want transparent", got)
	}
}

func TestSequenceWrapsToZero(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingPNG, quantity: 100}
	capture := &fakeCapture{w: 32, h: 32}
	p, buf := newTestProducer(settings, capture)

	p.seq.Store(math.MaxInt32 - 1)
	for i := 0; i < 3; i++ {
		if err := p.SendRegion(image.Rect(0, 0, 8, 8)); err != nil {
			t.Fatalf("SendRegion: %v", err)
		}
	}

	frames := decodeFrames(t, buf)
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	want := []uint32{math.MaxInt32, 0, 1}
	for i, f := range frames {
		if f.seq != want[i] {
			t.Errorf("frame %d seq = %d, want %d", i, f.seq, want[i])
		}
	}
}

func TestThrottleCounterWraps(t *testing.T) {
	// quantity 25 samples every 4th event. Counter values past the wrap:
	// MaxInt32 -> 0 (sampled), then 1, 2, 3 (dropped), 4 (sampled).
	var th Throttle
	th.counter.Store(math.MaxInt32)

	r := image.Rect(0, 0, 4, 4)
	if _, ok := th.Admit(r, 25); !ok {
		t.Fatal("wrap-point event not admitted")
	}
	if got := th.Counter(); got != 0 {
		t.Fatalf("counter after wrap = %d, want 0", got)
	}
	for i := 0; i < 3; i++ {
		if _, ok := th.Admit(r, 25); ok {
			t.Fatalf("event %d after wrap admitted before sample point", i+1)
		}
	}
	if _, ok := th.Admit(r, 25); !ok {
		t.Error("4th event after wrap not admitted")
	}
}

func TestSequenceStrictlyIncreasing(t *testing.T) {
	settings := &fakeSettings{mode: protocol.EncodingPNG, quantity: 100}
	capture := &fakeCapture{w: 32, h: 32}
	p, buf := newTestProducer(settings, capture)

	for i := 0; i < 5; i++ {
		if err := p.SendRegion(image.Rect(0, 0, 8, 8)); err != nil {
			t.Fatalf("SendRegion: %v", err)
		}
	}
	frames := decodeFrames(t, buf)
	for i := 1; i < len(frames); i++ {
		if frames[i].seq != frames[i-1].seq+1 {
			t.Errorf("seq %d follows %d", frames[i].seq, frames[i-1].seq)
		}
	}
}
