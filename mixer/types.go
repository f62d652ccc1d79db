package mixer

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Track is a named audio source eligible for mixing. Tracks are never
// mutated in place; replacing one is a remove followed by an add.
type Track struct {
	ID        string
	Name      string
	SourceRef string
	BuiltIn   bool
	CreatedAt time.Time
}

// Store is the persistent catalog of track definitions.
//
// List returns built-in tracks first, then user tracks in creation order.
// Delete reports ErrNotFound for unknown ids and ErrForbidden for built-in
// or foreign records.
type Store interface {
	List(ctx context.Context) ([]Track, error)
	Create(ctx context.Context, name, sourceRef string) (Track, error)
	Delete(ctx context.Context, id string) error
}

// Resolver turns raw user input (usually a pasted URL) into a source
// reference. It must be pure and must not perform I/O.
type Resolver func(raw string) (string, bool)

// Handle is the command surface of one externally owned player. Every
// call may fail; the controller never assumes a call took effect.
type Handle interface {
	Play() error
	Pause() error
	SetVolume(percent int) error
}

// StateCode is a playback engine state as reported by a player.
// The values follow the embedded YouTube player API.
type StateCode int

const (
	StateUnstarted StateCode = -1
	StateEnded     StateCode = 0
	StatePlaying   StateCode = 1
	StatePaused    StateCode = 2
	StateBuffering StateCode = 3
	StateCued      StateCode = 5
)

func (s StateCode) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the mixer state for display.
type Snapshot struct {
	Tracks      []Track
	Active      []string // catalog order
	Volumes     map[string]float64
	Bound       map[string]bool
	States      map[string]StateCode // last reported engine state
	Initialized bool
}

// IsActive reports whether id is in the active set.
func (s Snapshot) IsActive(id string) bool {
	for _, a := range s.Active {
		if a == id {
			return true
		}
	}
	return false
}

// Track returns the track with the given id.
func (s Snapshot) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Volume returns the stored volume for id, or DefaultVolume.
func (s Snapshot) Volume(id string) float64 {
	if v, ok := s.Volumes[id]; ok {
		return v
	}
	return DefaultVolume
}

// Find looks a track up by id, by 1-based position in the catalog or by
// case-insensitive name, in that order.
func (s Snapshot) Find(ref string) (Track, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Track{}, false
	}
	if t, ok := s.Track(ref); ok {
		return t, true
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(s.Tracks) {
			return s.Tracks[n-1], true
		}
		return Track{}, false
	}
	for _, t := range s.Tracks {
		if strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return Track{}, false
}
