package mixer

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

// gate parks one store call until the test releases it.
type gate struct {
	reached chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	close(g.reached)
	<-g.release
}

// gatedStore holds List after it has read the tracks, or Delete before it
// deletes, so commands can run while the store call is in flight.
type gatedStore struct {
	*fakeStore
	listGate   *gate
	deleteGate *gate
}

func (s *gatedStore) List(ctx context.Context) ([]Track, error) {
	tracks, err := s.fakeStore.List(ctx)
	if s.listGate != nil {
		s.listGate.wait()
	}
	return tracks, err
}

func (s *gatedStore) Delete(ctx context.Context, id string) error {
	if s.deleteGate != nil {
		s.deleteGate.wait()
	}
	return s.fakeStore.Delete(ctx, id)
}

func syncInFlight(t *testing.T, c *Controller, store *gatedStore) (release func()) {
	t.Helper()
	store.listGate = newGate()
	done := make(chan error, 1)
	go func() {
		_, err := c.Sync(context.Background())
		done <- err
	}()
	<-store.listGate.reached

	return func() {
		t.Helper()
		close(store.listGate.release)
		if err := <-done; err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		store.listGate = nil
	}
}

func journalLen(t *testing.T, c *Controller) int {
	t.Helper()
	var n int
	if err := c.do(func() { n = len(c.state.journal) }); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	return n
}

func TestAddDuringSyncSurvives(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{fakeStore: &fakeStore{tracks: []Track{builtIn("a")}}}
	c := newTestController(t, store)

	release := syncInFlight(t, c, store)

	tr, err := c.AddTrack(ctx, "Rain", "src:rain")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	h := &fakeHandle{}
	c.Toggle(tr.ID)
	c.SetVolume(tr.ID, 0.7)
	c.Bind(tr.ID, h)

	release()

	snap := c.Snapshot()
	if _, ok := snap.Track(tr.ID); !ok {
		t.Fatalf("track %s dropped by sync that started before it was added", tr.ID)
	}
	if !snap.IsActive(tr.ID) {
		t.Errorf("active state lost, active = %v", snap.Active)
	}
	if got := snap.Volume(tr.ID); got != 0.7 {
		t.Errorf("volume = %v, want 0.7", got)
	}
	if !snap.Bound[tr.ID] {
		t.Errorf("handle unbound by sync")
	}
	if want := []string{"volume:70", "play"}; !equalCalls(h.Calls(), want) {
		t.Errorf("handle calls = %v, want %v", h.Calls(), want)
	}
	if n := journalLen(t, c); n != 0 {
		t.Errorf("journal length after sync = %d, want 0", n)
	}

	if _, err := c.Sync(ctx); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !c.Snapshot().IsActive(tr.ID) {
		t.Errorf("track not active after a fresh sync")
	}
}

func TestRemoveDuringSyncStaysRemoved(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{fakeStore: &fakeStore{tracks: []Track{builtIn("a")}}}
	c := newTestController(t, store)

	tr, err := c.AddTrack(ctx, "Rain", "src:rain")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}

	release := syncInFlight(t, c, store)
	if err := c.RemoveTrack(ctx, tr.ID); err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	release()

	snap := c.Snapshot()
	if _, ok := snap.Track(tr.ID); ok {
		t.Fatalf("removed track %s reappeared after sync", tr.ID)
	}
	if _, ok := snap.Volumes[tr.ID]; ok {
		t.Errorf("removed track kept a mixer entry")
	}

	c.Toggle(tr.ID)
	if snap := c.Snapshot(); len(snap.Active) != 0 {
		t.Errorf("removed track toggled active: %v", snap.Active)
	}
}

func TestToggleDuringRemove(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{fakeStore: &fakeStore{tracks: []Track{builtIn("a")}}}
	c := newTestController(t, store)

	tr, err := c.AddTrack(ctx, "Rain", "src:rain")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	h := &fakeHandle{}
	c.Bind(tr.ID, h)

	store.deleteGate = newGate()
	done := make(chan error, 1)
	go func() { done <- c.RemoveTrack(ctx, tr.ID) }()
	<-store.deleteGate.reached

	if err := c.Toggle(tr.ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !c.Snapshot().IsActive(tr.ID) {
		t.Errorf("toggle issued before the removal applied was not honored")
	}

	close(store.deleteGate.release)
	if err := <-done; err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}

	if want := []string{"volume:50", "play", "pause"}; !equalCalls(h.Calls(), want) {
		t.Errorf("handle calls = %v, want %v", h.Calls(), want)
	}
	snap := c.Snapshot()
	if _, ok := snap.Track(tr.ID); ok || len(snap.Active) != 0 {
		t.Errorf("track still present after removal: tracks=%v active=%v", snap.Tracks, snap.Active)
	}

	c.Toggle(tr.ID)
	if got := len(h.Calls()); got != 3 {
		t.Errorf("handle reached after removal: %v", h.Calls())
	}
}

func TestJournalKeptForOldestPendingSync(t *testing.T) {
	s := newMixerState(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.applySync([]Track{builtIn("a")}, s.beginSync())

	older := s.beginSync()
	s.applyAdd(Track{ID: "u1", Name: "Rain"})
	newer := s.beginSync()
	s.applyAdd(Track{ID: "u2", Name: "Waves"})

	// The newer listing already saw u1 but not u2.
	s.applySync([]Track{builtIn("a"), {ID: "u1", Name: "Rain"}}, newer)
	if len(s.journal) != 2 {
		t.Fatalf("journal length = %d, want 2 while an older sync is pending", len(s.journal))
	}

	// The older listing saw neither add.
	s.applySync([]Track{builtIn("a")}, older)
	for _, id := range []string{"a", "u1", "u2"} {
		if _, ok := s.catalog.get(id); !ok {
			t.Errorf("track %s missing after overlapping syncs", id)
		}
	}
	if len(s.journal) != 0 || len(s.pending) != 0 {
		t.Errorf("journal=%d pending=%d after all syncs ended", len(s.journal), len(s.pending))
	}
}
