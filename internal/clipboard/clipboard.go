// Package clipboard bridges clipboard text between the gateway and the
// engine's clipboard virtual channel. The bridge never talks to the local
// system clipboard: text is cached in memory and the channel is told to
// re-fetch it on the next remote paste.
package clipboard

import (
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/artsbaro/FreeRDP/internal/rdp"
)

// MaxTextBytes caps clipboard text relayed to the gateway. Anything larger
// is cut and marked; browsers choke on multi-megabyte paste payloads long
// before the pipe does.
const MaxTextBytes = 1024 * 1024

const truncationNotice = "--- TRUNCATED ---"

// Bridge holds the session clipboard cache and its engine channel. The
// channel may be nil or inactive for the whole session; the cache still
// works, only remote-paste invalidation is skipped.
type Bridge struct {
	log     *slog.Logger
	channel rdp.Clipboard

	mu   sync.RWMutex
	text string
}

func NewBridge(logger *slog.Logger, channel rdp.Clipboard) *Bridge {
	return &Bridge{log: logger, channel: channel}
}

// Set caches text received from the gateway and invalidates the remote
// side so the next paste in the session pulls the new value. The cache is
// updated even when invalidation fails; the text is still correct, it just
// will not be offered until the channel recovers.
func (b *Bridge) Set(text string) error {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()

	if b.channel == nil || !b.channel.Active() {
		return nil
	}
	if err := b.channel.Invalidate(); err != nil {
		return fmt.Errorf("invalidate remote clipboard: %w", err)
	}
	return nil
}

// Text returns the cached clipboard value, served to the engine when the
// remote session requests paste data.
func (b *Bridge) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// SeedEmpty publishes an empty clipboard at session start so a stale value
// from the remote host never leaks into the first paste.
func (b *Bridge) SeedEmpty() {
	if err := b.Set(""); err != nil {
		b.log.Warn("clipboard seed failed", "err", err)
	}
}

// Truncate clamps text for gateway delivery at MaxTextBytes, cutting on a
// rune boundary and appending a marker so the user can tell the paste is
// incomplete.
func Truncate(text string) string {
	if len(text) <= MaxTextBytes {
		return text
	}
	cut := MaxTextBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationNotice
}
