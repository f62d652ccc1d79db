package mixer

import (
	"fmt"
	"log/slog"
	"math"
)

// DefaultVolume is the volume of a track that was never adjusted.
const DefaultVolume = 0.5

// validVolume reports whether v is a usable volume level.
func validVolume(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// percent scales a [0, 1] volume to the handle range 0..100.
func percent(v float64) int {
	return int(math.Round(v * 100))
}

// setVolume stores v and pushes it to a bound handle. Volumes may be staged
// for inactive or unbound tracks; they are applied on the next bind.
func (s *mixerState) setVolume(id string, v float64) error {
	if !validVolume(v) {
		return fmt.Errorf("set volume %v for %s: %w", v, id, ErrOutOfRange)
	}
	e, ok := s.entries[id]
	if !ok {
		s.logger.Debug("Ignoring volume for unknown track", slog.String("track", id))
		return nil
	}
	e.volume = v

	if h, bound := s.handles.get(id); bound {
		pct := percent(v)
		s.invoke(id, "setVolume", func() error { return h.SetVolume(pct) })
	}
	return nil
}
