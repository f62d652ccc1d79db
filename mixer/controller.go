// Package mixer keeps the runtime state of a layered ambient mix: which
// tracks exist, which are audible and how loud each one plays. It drives
// externally owned playback handles and never touches audio samples.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Controller is the single command surface of the mixer.
//
// All state lives on one event loop started with Run. Commands and player
// callbacks are posted to that loop and executed one at a time, in arrival
// order, so no two commands ever observe a half-applied change. Catalog
// I/O runs in the calling goroutine and only its result is applied on the
// loop, so a slow store does not hold up toggles on other tracks.
type Controller struct {
	store   Store
	resolve Resolver
	logger  *slog.Logger
	state   *mixerState

	events  chan func()
	stopped chan struct{}

	subMu sync.RWMutex
	subs  map[chan Snapshot]struct{}
	last  Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used by the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
		c.state.logger = logger
	}
}

// WithResumeOnBind selects the bind policy. When on (the default), binding
// a handle to an active track issues play. When off, an active track bound
// late stays silent until the caller toggles it or calls Resume.
func WithResumeOnBind(on bool) Option {
	return func(c *Controller) {
		c.state.resumeOnBind = on
	}
}

// WithDefaultVolume sets the volume of newly known tracks. Values outside
// [0, 1] are ignored.
func WithDefaultVolume(v float64) Option {
	return func(c *Controller) {
		if validVolume(v) {
			c.state.defaultVolume = v
		}
	}
}

// New creates a controller over the given catalog store and source resolver.
// The controller does nothing until Run is started.
func New(store Store, resolve Resolver, opts ...Option) *Controller {
	logger := slog.With("component", "mixer")
	c := &Controller{
		store:   store,
		resolve: resolve,
		logger:  logger,
		state:   newMixerState(logger),
		events:  make(chan func()),
		stopped: make(chan struct{}),
		subs:    make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last = c.state.snapshot()
	return c
}

// Run executes posted commands until ctx is cancelled. It must be called
// exactly once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)

	c.logger.Info("Mixer event loop started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Mixer event loop stopped")
			return nil
		case fn := <-c.events:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// do runs fn on the event loop and waits for it to finish.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case c.events <- task:
	case <-c.stopped:
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-c.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// mutate runs fn on the event loop and publishes the resulting snapshot.
func (c *Controller) mutate(fn func()) error {
	return c.do(func() {
		fn()
		c.publish(c.state.snapshot())
	})
}

// Init records the first user-driven playback intent.
func (c *Controller) Init() error {
	return c.mutate(c.state.init)
}

// Sync reloads the catalog view from the store. Adds and removes that
// complete while the listing is in flight are kept over it. On failure the
// previous view is kept and ErrCatalogUnavailable is returned.
func (c *Controller) Sync(ctx context.Context) ([]Track, error) {
	var since uint64
	if err := c.do(func() { since = c.state.beginSync() }); err != nil {
		return nil, err
	}

	tracks, err := c.store.List(ctx)
	if err != nil {
		c.logger.Error("Failed to list catalog", slog.Any("error", err))
		_ = c.do(func() { c.state.endSync(since) })
		return nil, fmt.Errorf("sync catalog: %w: %w", ErrCatalogUnavailable, err)
	}

	var view []Track
	err = c.mutate(func() {
		c.state.applySync(tracks, since)
		view = c.state.catalog.list()
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// AddTrack validates name and raw input, creates the track in the store and
// adds it to the mixer. A failed add leaves the mixer unchanged.
func (c *Controller) AddTrack(ctx context.Context, name, raw string) (Track, error) {
	name = normalizeName(name)
	if name == "" {
		return Track{}, fmt.Errorf("add track: empty name: %w", ErrInvalidInput)
	}
	ref, ok := c.resolve(strings.TrimSpace(raw))
	if !ok || ref == "" {
		return Track{}, fmt.Errorf("add track: unrecognized source %q: %w", raw, ErrInvalidInput)
	}

	t, err := c.store.Create(ctx, name, ref)
	if err != nil {
		return Track{}, c.storeError("add track", err)
	}

	if err := c.mutate(func() { c.state.applyAdd(t) }); err != nil {
		return Track{}, err
	}
	return t, nil
}

// RemoveTrack deletes a user track from the store and tears down its
// mixer entry, pausing its handle first. Built-in tracks are refused.
func (c *Controller) RemoveTrack(ctx context.Context, id string) error {
	var (
		t     Track
		known bool
	)
	if err := c.do(func() { t, known = c.state.catalog.get(id) }); err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("remove track %s: %w", id, ErrNotFound)
	}
	if t.BuiltIn {
		return fmt.Errorf("remove track %s: %w", id, ErrForbidden)
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return c.storeError("remove track "+id, err)
	}

	return c.mutate(func() { c.state.applyRemove(id) })
}

// storeError keeps validation errors reported by the store and maps every
// other failure to ErrCatalogUnavailable.
func (c *Controller) storeError(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Error("Catalog store call failed", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("%s: %w: %w", op, ErrCatalogUnavailable, err)
}

// Toggle flips a track between inactive and active, issuing pause or play
// to its handle when one is bound.
func (c *Controller) Toggle(id string) error {
	return c.mutate(func() { c.state.toggle(id) })
}

// SetVolume stores v for id and pushes it to a bound handle.
func (c *Controller) SetVolume(id string, v float64) error {
	var err error
	if derr := c.mutate(func() { err = c.state.setVolume(id, v) }); derr != nil {
		return derr
	}
	return err
}

// Volume returns the stored volume of id for display.
func (c *Controller) Volume(id string) float64 {
	return c.Snapshot().Volume(id)
}

// StopAll pauses every active track and empties the active set.
func (c *Controller) StopAll() error {
	return c.mutate(c.state.stopAll)
}

// Resume issues play to the handle of an active track.
func (c *Controller) Resume(id string) error {
	return c.do(func() { c.state.resume(id) })
}

// Bind attaches a ready handle to a track. Binding the same handle again
// is a no-op; binding a different one replaces it.
func (c *Controller) Bind(id string, h Handle) error {
	return c.mutate(func() { c.state.bind(id, h) })
}

// Unbind drops the handle reference of a track without touching its state.
func (c *Controller) Unbind(id string) error {
	return c.mutate(func() { c.state.unbind(id) })
}

// OnStateChange delivers an engine state for a track.
func (c *Controller) OnStateChange(id string, code StateCode) error {
	return c.mutate(func() { c.state.stateChanged(id, code) })
}

// Snapshot returns the most recently published state. The maps and slices
// are shared with subscribers and must not be modified.
func (c *Controller) Snapshot() Snapshot {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.last
}

// Subscribe returns a channel that receives a snapshot after every state
// change, starting with the current one. A subscriber that falls behind
// only loses intermediate snapshots, never the latest.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.last
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publish(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.last = snap
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
