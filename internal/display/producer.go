// Package display turns engine damage notifications into encoded image
// updates: region consolidation, IPS throttling, client-size scaling and
// sequence numbering all live here.
package display

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/artsbaro/FreeRDP/internal/codec"
	"github.com/artsbaro/FreeRDP/internal/metrics"
	"github.com/artsbaro/FreeRDP/internal/protocol"
	"github.com/artsbaro/FreeRDP/internal/rdp"
	"github.com/artsbaro/FreeRDP/internal/screenshot"
)

// Settings is the slice of session state the producer reads. Values may
// change concurrently with sends; each send reads them once.
type Settings interface {
	EncodingMode() protocol.EncodingMode
	ImageQuality() protocol.Quality
	ImageQuantity() int
	ScaleDisplay() bool
	ClientSize() (width, height int)
}

// Producer owns the outbound image path for one session. All Send methods
// are called from the engine's update thread; the sequence counter is the
// only state shared with other threads and is atomic.
type Producer struct {
	log      *slog.Logger
	capture  rdp.DisplayCapture
	settings Settings
	frames   *protocol.FrameWriter

	// Optional collaborators, set before the session starts.
	Shots   *screenshot.Taker
	Metrics *metrics.Metrics

	seq      atomic.Uint32
	throttle Throttle
}

func NewProducer(logger *slog.Logger, capture rdp.DisplayCapture, settings Settings, frames *protocol.FrameWriter) *Producer {
	return &Producer{
		log:      logger,
		capture:  capture,
		settings: settings,
		frames:   frames,
	}
}

// SendRegion forwards one damaged desktop rectangle, subject to the IPS
// throttle. Rectangles outside the desktop are dropped: the engine emits
// them transiently during resizes and they carry no usable pixels. Only a
// pipe write failure is returned as an error; capture and codec failures
// drop the update and keep the session alive.
func (p *Producer) SendRegion(r image.Rectangle) error {
	dw, dh := p.capture.DesktopSize()
	r = r.Canon()
	if r.Empty() || !r.In(image.Rect(0, 0, dw, dh)) {
		p.log.Debug("region outside desktop, dropped", "region", r.String())
		return nil
	}

	region, ok := p.throttle.Admit(r, p.settings.ImageQuantity())
	if !ok {
		p.Metrics.RegionThrottled()
		return nil
	}

	img, err := p.capture.CaptureRegion(region)
	if err != nil {
		p.log.Warn("region capture failed", "region", region.String(), "err", err)
		return nil
	}

	target := region
	if dst, ok := p.scaleRect(region, dw, dh); ok {
		img = scaleImage(img, dst.Dx(), dst.Dy())
		target = dst
	}

	return p.encodeAndWrite(img, target, false)
}

// SendScreen forwards the whole desktop. Fullscreen updates bypass the
// throttle; in adaptive mode the lossy quality is boosted one tier so the
// periodic refresh cleans up region artifacts. Feeds the screenshot taker
// when one is armed.
func (p *Producer) SendScreen(adaptive bool) error {
	dw, dh := p.capture.DesktopSize()
	desktop := image.Rect(0, 0, dw, dh)

	img, err := p.capture.CaptureRegion(desktop)
	if err != nil {
		p.log.Warn("fullscreen capture failed", "err", err)
		return nil
	}

	if path, err := p.Shots.TakeIfArmed(img); err != nil {
		p.log.Warn("screenshot save failed", "err", err)
	} else if path != "" {
		p.log.Info("screenshot saved", "path", path)
	}

	target := desktop
	if dst, ok := p.scaleRect(desktop, dw, dh); ok {
		img = scaleImage(img, dst.Dx(), dst.Dy())
		target = dst
	}

	return p.encodeAndWriteOpts(img, target, true, adaptive)
}

// SendCursor forwards the current pointer shape, always lossless and never
// throttled. The hotspot rides in the position fields. Unusable shapes
// (fully opaque or fully masked) are skipped so the browser keeps the last
// good cursor.
func (p *Producer) SendCursor() error {
	img, hotspot, mask, err := p.capture.CaptureCursor()
	if err != nil {
		p.log.Warn("cursor capture failed", "err", err)
		return nil
	}
	if img == nil || !prepareCursor(img, mask) {
		return nil
	}

	res, err := codec.EncodePNG(img)
	if err != nil {
		p.Metrics.CodecFailure()
		p.log.Warn("cursor encode failed", "err", err)
		return nil
	}

	upd := &protocol.ImageUpdate{
		Seq:     p.nextSeq(),
		X:       hotspot.X,
		Y:       hotspot.Y,
		W:       img.Bounds().Dx(),
		H:       img.Bounds().Dy(),
		Format:  protocol.FormatCursor,
		Quality: protocol.QualityHighest,
		Data:    res.Data,
	}
	if err := p.frames.WriteImage(upd); err != nil {
		return fmt.Errorf("write cursor update: %w", err)
	}
	p.Metrics.ImageSent(protocol.FormatCursor.String(), len(res.Data))
	return nil
}

// Seq returns the last issued sequence index.
func (p *Producer) Seq() uint32 { return p.seq.Load() }

func (p *Producer) encodeAndWrite(img image.Image, target image.Rectangle, fullscreen bool) error {
	return p.encodeAndWriteOpts(img, target, fullscreen, false)
}

func (p *Producer) encodeAndWriteOpts(img image.Image, target image.Rectangle, fullscreen, adaptive bool) error {
	res, err := codec.Encode(img, p.settings.EncodingMode(), p.settings.ImageQuality(), fullscreen, adaptive)
	if err != nil {
		p.Metrics.CodecFailure()
		p.log.Warn("image encode failed", "err", err)
		return nil
	}

	upd := &protocol.ImageUpdate{
		Seq:        p.nextSeq(),
		X:          target.Min.X,
		Y:          target.Min.Y,
		W:          target.Dx(),
		H:          target.Dy(),
		Format:     res.Format,
		Quality:    res.Quality,
		Fullscreen: fullscreen,
		Data:       res.Data,
	}
	if err := p.frames.WriteImage(upd); err != nil {
		return fmt.Errorf("write image update: %w", err)
	}
	p.Metrics.ImageSent(res.Format.String(), len(res.Data))
	return nil
}

// scaleRect maps a desktop rectangle to client coordinates when display
// scaling is active. Max edges round up so adjacent tiles stay gapless.
func (p *Producer) scaleRect(r image.Rectangle, dw, dh int) (image.Rectangle, bool) {
	if !p.settings.ScaleDisplay() {
		return r, false
	}
	cw, ch := p.settings.ClientSize()
	if cw <= 0 || ch <= 0 || (cw == dw && ch == dh) {
		return r, false
	}
	scaled := image.Rect(
		r.Min.X*cw/dw,
		r.Min.Y*ch/dh,
		(r.Max.X*cw+dw-1)/dw,
		(r.Max.Y*ch+dh-1)/dh,
	)
	if scaled.Empty() {
		return r, false
	}
	return scaled, true
}

// nextSeq issues the next sequence index, wrapping to 0 past MaxInt32 so
// the value stays non-negative in any signed representation.
func (p *Producer) nextSeq() uint32 {
	for {
		cur := p.seq.Load()
		next := cur + 1
		if cur >= math.MaxInt32 {
			next = 0
		}
		if p.seq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

func scaleImage(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
