package session

import (
	"sync"

	"github.com/artsbaro/FreeRDP/internal/protocol"
)

// State holds the tunable session parameters. Writes come from the command
// loop, reads from the engine's update thread; a single mutex keeps every
// field consistent without ordering constraints between them.
type State struct {
	mu sync.RWMutex

	mode     protocol.EncodingMode
	quality  protocol.Quality
	quantity int

	scale            bool
	clientW, clientH int
	// aspect is the remote desktop ratio, fixed at session start. Resize
	// requests that would distort it are clamped against this value.
	aspect float64

	audioFormat  protocol.AudioFormat
	audioBitrate int
}

// NewState returns session defaults: auto encoding at High quality, every
// region forwarded, no scaling, MP3 audio at 128 kbps.
func NewState(desktopW, desktopH int) *State {
	s := &State{
		mode:         protocol.EncodingAuto,
		quality:      protocol.QualityHigh,
		quantity:     100,
		clientW:      desktopW,
		clientH:      desktopH,
		audioFormat:  protocol.AudioMP3,
		audioBitrate: 128,
	}
	if desktopH > 0 {
		s.aspect = float64(desktopW) / float64(desktopH)
	}
	return s
}

func (s *State) EncodingMode() protocol.EncodingMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetEncodingMode switches the encoding and resets quality to High: the
// tiers are not comparable across codecs, so a carried-over value would be
// meaningless for the new one.
func (s *State) SetEncodingMode(mode protocol.EncodingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.quality = protocol.QualityHigh
}

func (s *State) ImageQuality() protocol.Quality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

func (s *State) SetImageQuality(q protocol.Quality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = q
}

func (s *State) ImageQuantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quantity
}

func (s *State) SetImageQuantity(q int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantity = q
}

func (s *State) ScaleDisplay() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scale
}

func (s *State) SetScaleDisplay(scale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
}

func (s *State) ClientSize() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientW, s.clientH
}

// Resize applies a client resolution. With keepAspect the requested size is
// shrunk along one axis to the session's fixed desktop ratio, so scaled
// updates are never distorted, only letterboxed by the browser.
func (s *State) Resize(width, height int, keepAspect bool) {
	if width <= 0 || height <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !keepAspect || s.aspect == 0 {
		s.clientW, s.clientH = width, height
		return
	}

	requested := float64(width) / float64(height)
	switch {
	case requested == s.aspect:
		s.clientW, s.clientH = width, height
	case s.aspect < requested:
		// client too wide: derive width from height
		s.clientW = int(float64(height) * s.aspect)
		s.clientH = height
	default:
		// client too tall: derive height from width
		s.clientW = width
		s.clientH = int(float64(width) / s.aspect)
	}
}

func (s *State) AudioFormat() protocol.AudioFormat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioFormat
}

func (s *State) SetAudioFormat(f protocol.AudioFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioFormat = f
}

func (s *State) AudioBitrate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioBitrate
}

func (s *State) SetAudioBitrate(kbps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBitrate = kbps
}
