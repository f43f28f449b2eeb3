// Package screenshot saves one-shot captures of fullscreen updates.
// The gateway drives the schedule by sending a take-screenshot command per
// shot; the bridge only arms a flag and saves the next fullscreen image.
package screenshot

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artsbaro/FreeRDP/internal/protocol"
)

// Config is set by the screenshot-config command.
type Config struct {
	// IntervalSecs is stored for the gateway's benefit; the bridge itself
	// never schedules captures.
	IntervalSecs int
	Format       protocol.ImageFormat // PNG or JPEG
	Path         string
}

// Taker arms one-shot screenshot captures.
type Taker struct {
	sessionID string

	mu  sync.Mutex
	cfg Config

	armed atomic.Bool
}

// NewTaker creates a Taker with the protocol defaults (PNG, 60s interval).
func NewTaker(sessionID string) *Taker {
	return &Taker{
		sessionID: sessionID,
		cfg: Config{
			IntervalSecs: 60,
			Format:       protocol.FormatPNG,
		},
	}
}

// Configure replaces the screenshot settings.
func (t *Taker) Configure(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// Config returns the current settings.
func (t *Taker) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Arm requests that the next fullscreen update is saved.
func (t *Taker) Arm() {
	t.armed.Store(true)
}

// Armed reports whether a capture is pending.
func (t *Taker) Armed() bool {
	return t.armed.Load()
}

// TakeIfArmed saves img when a capture is armed, disarming first so a save
// failure does not retrigger on every subsequent update. Returns the file
// path, or "" when nothing was armed or no path is configured. A nil Taker
// never captures.
func (t *Taker) TakeIfArmed(img image.Image) (string, error) {
	if t == nil || !t.armed.Swap(false) {
		return "", nil
	}

	cfg := t.Config()
	if cfg.Path == "" {
		return "", nil
	}

	ext := ".png"
	if cfg.Format == protocol.FormatJPEG {
		ext = ".jpg"
	}
	name := fmt.Sprintf("%s_%d%s", t.sessionID, time.Now().UnixMilli(), ext)
	path := filepath.Join(cfg.Path, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create screenshot: %w", err)
	}
	defer f.Close()

	switch cfg.Format {
	case protocol.FormatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: int(protocol.QualityHigh)})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}
	return path, nil
}
