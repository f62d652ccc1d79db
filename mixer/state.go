package mixer

import (
	"fmt"
	"log/slog"
)

type entry struct {
	active bool
	volume float64
	state  StateCode
}

// mixerState is everything the event loop owns. None of it is safe for
// concurrent use; the Controller serializes access.
type mixerState struct {
	catalog     catalogView
	handles     registry
	entries     map[string]*entry
	initialized bool

	// version counts adds and removes. journal holds those applied while
	// a sync listing was pending; pending counts syncs per start version.
	version uint64
	journal []change
	pending map[uint64]int

	resumeOnBind  bool
	defaultVolume float64
	logger        *slog.Logger
}

func newMixerState(logger *slog.Logger) *mixerState {
	return &mixerState{
		handles:       newRegistry(),
		entries:       make(map[string]*entry),
		pending:       make(map[uint64]int),
		resumeOnBind:  true,
		defaultVolume: DefaultVolume,
		logger:        logger,
	}
}

// invoke runs one handle call, absorbing errors and panics as handle faults.
func (s *mixerState) invoke(id, op string, call func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return call()
	}()
	if err != nil {
		s.logger.Warn("Handle call failed",
			slog.String("track", id),
			slog.String("op", op),
			slog.Any("error", fmt.Errorf("%w: %w", ErrHandleFault, err)))
	}
}

func (s *mixerState) init() {
	if !s.initialized {
		s.initialized = true
		s.logger.Debug("Mixer initialized")
	}
}

// toggle flips a track between inactive and active. Unknown ids still mark
// the mixer initialized but change nothing else.
func (s *mixerState) toggle(id string) {
	s.init()

	e, ok := s.entries[id]
	if !ok {
		s.logger.Debug("Ignoring toggle for unknown track", slog.String("track", id))
		return
	}
	h, bound := s.handles.get(id)

	if e.active {
		if bound {
			s.invoke(id, "pause", func() error { return h.Pause() })
		}
		e.active = false
	} else {
		if bound {
			s.invoke(id, "play", func() error { return h.Play() })
		}
		e.active = true
	}

	s.logger.Info("Track toggled",
		slog.String("track", id),
		slog.Bool("active", e.active),
		slog.Bool("bound", bound))
}

// resume re-issues play for an active track, for callers that run with the
// resume-on-bind policy off.
func (s *mixerState) resume(id string) {
	e, ok := s.entries[id]
	if !ok || !e.active {
		return
	}
	if h, bound := s.handles.get(id); bound {
		s.invoke(id, "play", func() error { return h.Play() })
	}
}

// stateChanged records an engine state. An ended active track is looped;
// an ended inactive track was stopped on purpose and stays silent.
func (s *mixerState) stateChanged(id string, code StateCode) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.state = code
	if code != StateEnded || !e.active {
		return
	}
	if h, bound := s.handles.get(id); bound {
		s.logger.Debug("Looping ended track", slog.String("track", id))
		s.invoke(id, "play", func() error { return h.Play() })
	}
}

// stopAll pauses every active track and empties the active set.
func (s *mixerState) stopAll() {
	stopped := 0
	for _, t := range s.catalog.tracks {
		e, ok := s.entries[t.ID]
		if !ok || !e.active {
			continue
		}
		if h, bound := s.handles.get(t.ID); bound {
			s.invoke(t.ID, "pause", func() error { return h.Pause() })
		}
		e.active = false
		stopped++
	}
	s.logger.Info("Stopped all tracks", slog.Int("stopped", stopped))
}

func (s *mixerState) snapshot() Snapshot {
	snap := Snapshot{
		Tracks:      s.catalog.list(),
		Active:      []string{},
		Volumes:     make(map[string]float64, len(s.entries)),
		Bound:       make(map[string]bool, len(s.handles.handles)),
		States:      make(map[string]StateCode, len(s.entries)),
		Initialized: s.initialized,
	}
	for _, t := range s.catalog.tracks {
		e, ok := s.entries[t.ID]
		if !ok {
			continue
		}
		if e.active {
			snap.Active = append(snap.Active, t.ID)
		}
		snap.Volumes[t.ID] = e.volume
		snap.States[t.ID] = e.state
		if _, bound := s.handles.get(t.ID); bound {
			snap.Bound[t.ID] = true
		}
	}
	return snap
}
