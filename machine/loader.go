package machine

import (
	"errors"
	"log/slog"
	"sync"

	"ambimix/mixer"
	"ambimix/playback"
)

// Binder receives loaded players and their engine state changes.
type Binder interface {
	Bind(id string, h mixer.Handle) error
	OnStateChange(id string, code mixer.StateCode) error
}

// HandleLoader keeps one engine player per catalog track. Players are
// decoded in the background and bound once ready; tracks without local
// media simply never get a handle.
type HandleLoader struct {
	engine *playback.Engine
	binder Binder
	logger *slog.Logger

	mu     sync.Mutex
	loaded map[string]string // track id to source ref
}

// NewHandleLoader creates a loader for engine.
func NewHandleLoader(engine *playback.Engine, binder Binder) *HandleLoader {
	return &HandleLoader{
		engine: engine,
		binder: binder,
		logger: slog.With("component", "loader"),
		loaded: make(map[string]string),
	}
}

// Reconcile starts loading players for new tracks and unloads the players
// of tracks no longer in snap.
func (l *HandleLoader) Reconcile(snap mixer.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := make(map[string]bool, len(snap.Tracks))
	for _, t := range snap.Tracks {
		want[t.ID] = true
		if _, ok := l.loaded[t.ID]; ok {
			continue
		}
		l.loaded[t.ID] = t.SourceRef

		if !l.engine.Library().Has(t.SourceRef) {
			l.logger.Info("No local media for track",
				slog.String("track", t.Name),
				slog.String("source", t.SourceRef))
			continue
		}
		l.engine.LoadAsync(t.ID, t.SourceRef, l.stateFunc(t.ID), l.ready(t.ID))
	}

	for id := range l.loaded {
		if !want[id] {
			delete(l.loaded, id)
			l.engine.Unload(id)
		}
	}
}

// Loaded reports whether a player was requested for id.
func (l *HandleLoader) Loaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[id]
	return ok
}

func (l *HandleLoader) stateFunc(id string) playback.StateFunc {
	return func(code mixer.StateCode) {
		if err := l.binder.OnStateChange(id, code); err != nil && !errors.Is(err, mixer.ErrStopped) {
			l.logger.Error("Failed to deliver player state",
				slog.String("track", id),
				slog.Any("error", err))
		}
	}
}

func (l *HandleLoader) ready(id string) func(p *playback.Player, err error) {
	return func(p *playback.Player, err error) {
		if err != nil {
			l.logger.Warn("Failed to load track media",
				slog.String("track", id),
				slog.Any("error", err))
			return
		}

		l.mu.Lock()
		_, wanted := l.loaded[id]
		l.mu.Unlock()
		if !wanted {
			l.engine.Unload(id)
			return
		}

		if err := l.binder.Bind(id, p); err != nil {
			l.logger.Debug("Player not bound",
				slog.String("track", id),
				slog.Any("error", err))
			return
		}
		l.logger.Debug("Player bound", slog.String("track", id))
	}
}
