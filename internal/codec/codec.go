// Package codec turns raw pixel regions into encoded update payloads. PNG
// is lossless and ignores the requested quality; JPEG and WebP honor it.
// AUTO mode races PNG against JPEG and keeps the smaller output, which in
// practice picks PNG for text-heavy regions and JPEG for photographic ones.
package codec

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/chai2010/webp"

	"github.com/artsbaro/FreeRDP/internal/protocol"
)

var ErrAllCandidatesFailed = errors.New("codec: no candidate produced output")

// Result is one successfully encoded image.
type Result struct {
	Format  protocol.ImageFormat
	Quality protocol.Quality // quality actually applied (Highest for PNG)
	Data    []byte
}

// EncodePNG encodes losslessly. The reported quality is always Highest,
// whatever the client asked for.
func EncodePNG(img image.Image) (*Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrAllCandidatesFailed
	}
	return &Result{Format: protocol.FormatPNG, Quality: protocol.QualityHighest, Data: buf.Bytes()}, nil
}

// EncodeJPEG encodes at the given quality tier.
func EncodeJPEG(img image.Image, quality protocol.Quality) (*Result, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality)}); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrAllCandidatesFailed
	}
	return &Result{Format: protocol.FormatJPEG, Quality: quality, Data: buf.Bytes()}, nil
}

// EncodeWebP encodes at the given quality tier.
func EncodeWebP(img image.Image, quality protocol.Quality) (*Result, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrAllCandidatesFailed
	}
	return &Result{Format: protocol.FormatWebP, Quality: quality, Data: buf.Bytes()}, nil
}

// EffectiveQuality resolves the quality an update is encoded at. PNG mode
// is always lossless; an adaptive fullscreen update in a lossy mode gets
// the Higher tier regardless of the client-set value: full refreshes are
// rare enough to absorb the extra cost for a sharper image.
func EffectiveQuality(mode protocol.EncodingMode, requested protocol.Quality, fullscreen, adaptive bool) protocol.Quality {
	if mode == protocol.EncodingPNG {
		return protocol.QualityHighest
	}
	if fullscreen && adaptive {
		return protocol.QualityHigher
	}
	return requested
}

// Encode runs the pipeline for one region. It returns
// ErrAllCandidatesFailed when every applicable encoder failed; any other
// error is impossible by construction (individual failures only exclude
// that candidate).
func Encode(img image.Image, mode protocol.EncodingMode, requested protocol.Quality, fullscreen, adaptive bool) (*Result, error) {
	quality := EffectiveQuality(mode, requested, fullscreen, adaptive)

	switch mode {
	case protocol.EncodingPNG:
		return EncodePNG(img)
	case protocol.EncodingJPEG:
		return EncodeJPEG(img, quality)
	case protocol.EncodingWebP:
		return EncodeWebP(img, quality)
	default:
		return encodeAuto(img, quality)
	}
}

// encodeAuto encodes the PNG and JPEG candidates concurrently and keeps the
// smaller one. Ties favor PNG (lossless at equal cost). A failed or empty
// candidate is excluded; with both gone there is no update for this event.
func encodeAuto(img image.Image, quality protocol.Quality) (*Result, error) {
	var (
		wg      sync.WaitGroup
		pngRes  *Result
		jpegRes *Result
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pngRes, _ = EncodePNG(img)
	}()
	go func() {
		defer wg.Done()
		jpegRes, _ = EncodeJPEG(img, quality)
	}()
	wg.Wait()

	switch {
	case pngRes == nil && jpegRes == nil:
		return nil, ErrAllCandidatesFailed
	case jpegRes == nil:
		return pngRes, nil
	case pngRes == nil:
		return jpegRes, nil
	case len(pngRes.Data) <= len(jpegRes.Data):
		return pngRes, nil
	default:
		return jpegRes, nil
	}
}
