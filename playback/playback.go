package playback

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"ambimix/mixer"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithoutOutput builds an engine that never opens the speaker. Players can
// still be driven through their Stream method.
func WithoutOutput() EngineOption {
	return func(e *Engine) {
		e.output = false
	}
}

// NewEngine creates a playback engine and, unless disabled, starts playing
// its mixer on the speaker.
func NewEngine(sampleRate beep.SampleRate, library *Library, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		mixer:      &beep.Mixer{},
		sampleRate: sampleRate,
		library:    library,
		output:     true,
		players:    make(map[string]*Player),
		events:     make(chan stateEvent, 256),
		quit:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.output {
		// Initialize the speaker with the given sample rate
		if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
			return nil, fmt.Errorf("failed to initialize speaker: %w", err)
		}
		speaker.Play(e.mixer)
	}

	e.wg.Add(1)
	go e.dispatch()

	return e, nil
}

// dispatch delivers player state changes in order, outside the audio
// callback. Events from replaced or unloaded players are dropped.
func (e *Engine) dispatch() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.events:
			if !e.current(ev.player) {
				continue
			}
			if ev.player.onState != nil {
				ev.player.onState(ev.code)
			}
		case <-e.quit:
			return
		}
	}
}

// Load decodes the media for sourceRef and adds a paused player for id to
// the mix, replacing any previous player for the same id.
func (e *Engine) Load(id, sourceRef string, onState StateFunc) (*Player, error) {
	buffer, err := e.library.Decode(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return e.attach(id, buffer, onState)
}

// LoadAsync runs Load in its own goroutine and hands the result to ready.
func (e *Engine) LoadAsync(id, sourceRef string, onState StateFunc, ready func(p *Player, err error)) {
	go func() {
		ready(e.Load(id, sourceRef, onState))
	}()
}

// LoadFile is Load for an explicit media file path.
func (e *Engine) LoadFile(id, path string, onState StateFunc) (*Player, error) {
	buffer, err := e.library.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return e.attach(id, buffer, onState)
}

func (e *Engine) attach(id string, buffer *beep.Buffer, onState StateFunc) (*Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("playback is closed")
	}

	p := newPlayer(id, buffer, e.sampleRate, e.emit)
	p.onState = onState

	speaker.Lock()
	if old, ok := e.players[id]; ok {
		old.closed = true
	}
	e.mixer.Add(p)
	speaker.Unlock()

	e.players[id] = p
	p.emit(p, mixer.StateCued)

	slog.Debug("Player loaded",
		slog.String("component", "playback"),
		slog.String("track", id),
		slog.Duration("duration", p.Duration()))
	return p, nil
}

// Unload removes the player for id from the mix.
func (e *Engine) Unload(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.players[id]; ok {
		p.Close()
		delete(e.players, id)
	}
}

// Library returns the media library players are decoded from.
func (e *Engine) Library() *Library {
	return e.library
}

// Player returns the loaded player for id.
func (e *Engine) Player(id string) (*Player, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.players[id]
	return p, ok
}

// current reports whether p is still the loaded player for its id.
func (e *Engine) current(p *Player) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.players[p.id] == p
}

// emit queues a state change without blocking the audio callback.
func (e *Engine) emit(p *Player, code mixer.StateCode) {
	select {
	case e.events <- stateEvent{player: p, code: code}:
	default:
		slog.Warn("Dropping player state change",
			slog.String("component", "playback"),
			slog.String("track", p.id),
			slog.String("state", code.String()))
	}
}

// Close stops every player and releases the speaker
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	speaker.Lock()
	for _, p := range e.players {
		p.closed = true
	}
	e.mixer.Clear()
	speaker.Unlock()
	e.players = nil
	e.mu.Unlock()

	close(e.quit)
	e.wg.Wait()

	if e.output {
		speaker.Close()
	}
	return nil
}
