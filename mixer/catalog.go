package mixer

import (
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// catalogView is the ordered in-memory projection of the store.
type catalogView struct {
	tracks []Track
}

// orderTracks puts built-ins first, keeping their store order, then user
// tracks by creation time.
func orderTracks(tracks []Track) []Track {
	out := make([]Track, len(tracks))
	copy(out, tracks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BuiltIn != b.BuiltIn {
			return a.BuiltIn
		}
		if a.BuiltIn {
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}

func (v *catalogView) get(id string) (Track, bool) {
	for _, t := range v.tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

func (v *catalogView) list() []Track {
	out := make([]Track, len(v.tracks))
	copy(out, v.tracks)
	return out
}

func (v *catalogView) append(t Track) bool {
	if _, ok := v.get(t.ID); ok {
		return false
	}
	v.tracks = append(v.tracks, t)
	return true
}

func (v *catalogView) remove(id string) bool {
	for i, t := range v.tracks {
		if t.ID == id {
			v.tracks = append(v.tracks[:i], v.tracks[i+1:]...)
			return true
		}
	}
	return false
}

// normalizeName trims and NFC-normalizes a display name.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// change is one add or remove applied while a sync listing was in flight.
type change struct {
	version uint64
	id      string
	added   bool
}

// beginSync registers a sync about to read the store and returns the
// version its listing will be compared against.
func (s *mixerState) beginSync() uint64 {
	s.pending[s.version]++
	return s.version
}

// endSync unregisters a sync and drops journal entries no pending sync
// still needs.
func (s *mixerState) endSync(since uint64) {
	s.pending[since]--
	if s.pending[since] <= 0 {
		delete(s.pending, since)
	}
	if len(s.pending) == 0 {
		s.journal = nil
		return
	}

	oldest := s.version
	for v := range s.pending {
		oldest = min(oldest, v)
	}
	kept := s.journal[:0]
	for _, ch := range s.journal {
		if ch.version > oldest {
			kept = append(kept, ch)
		}
	}
	s.journal = kept
}

// record bumps the view version and journals the change for pending syncs.
func (s *mixerState) record(id string, added bool) {
	s.version++
	if len(s.pending) > 0 {
		s.journal = append(s.journal, change{version: s.version, id: id, added: added})
	}
}

// changesAfter returns the last add or remove outcome per id applied after version.
func (s *mixerState) changesAfter(version uint64) map[string]bool {
	out := make(map[string]bool)
	for _, ch := range s.journal {
		if ch.version > version {
			out[ch.id] = ch.added
		}
	}
	return out
}

// applySync reconciles the view with a listing read after version since.
// Adds and removes applied after that point win over the listing. Entries
// are created for new ids and torn down for tracks that disappeared.
func (s *mixerState) applySync(tracks []Track, since uint64) {
	defer s.endSync(since)

	newer := s.changesAfter(since)
	merged := make([]Track, 0, len(tracks))
	listed := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		listed[t.ID] = true
		if added, ok := newer[t.ID]; ok && !added {
			continue
		}
		merged = append(merged, t)
	}
	for _, t := range s.catalog.tracks {
		if added, ok := newer[t.ID]; ok && added && !listed[t.ID] {
			merged = append(merged, t)
		}
	}
	ordered := orderTracks(merged)

	keep := make(map[string]bool, len(ordered))
	for _, t := range ordered {
		keep[t.ID] = true
	}
	for _, t := range s.catalog.tracks {
		if !keep[t.ID] {
			s.teardown(t.ID)
		}
	}

	s.catalog.tracks = ordered
	for _, t := range ordered {
		s.ensureEntry(t.ID)
	}

	s.logger.Debug("Catalog synced",
		slog.Int("tracks", len(ordered)),
		slog.Int("newer", len(newer)))
}

func (s *mixerState) applyAdd(t Track) {
	s.record(t.ID, true)
	if !s.catalog.append(t) {
		return
	}
	s.ensureEntry(t.ID)
	s.logger.Info("Track added", slog.String("track", t.ID), slog.String("name", t.Name))
}

func (s *mixerState) applyRemove(id string) {
	s.record(id, false)
	if !s.catalog.remove(id) {
		return
	}
	s.teardown(id)
	s.logger.Info("Track removed", slog.String("track", id))
}

func (s *mixerState) ensureEntry(id string) {
	if _, ok := s.entries[id]; !ok {
		s.entries[id] = &entry{volume: s.defaultVolume, state: StateUnstarted}
	}
}

// teardown pauses a bound handle before dropping it, then forgets the entry.
func (s *mixerState) teardown(id string) {
	if h, ok := s.handles.get(id); ok {
		s.invoke(id, "pause", func() error { return h.Pause() })
		s.handles.unbind(id)
	}
	delete(s.entries, id)
}
