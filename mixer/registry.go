package mixer

import "log/slog"

// registry maps track ids to bound handles. Handles arrive late, out of
// order and sometimes more than once.
type registry struct {
	handles map[string]Handle
}

func newRegistry() registry {
	return registry{handles: make(map[string]Handle)}
}

// bind stores h for id and reports whether anything changed.
func (r *registry) bind(id string, h Handle) bool {
	if cur, ok := r.handles[id]; ok && sameHandle(cur, h) {
		return false
	}
	r.handles[id] = h
	return true
}

func (r *registry) unbind(id string) {
	delete(r.handles, id)
}

func (r *registry) get(id string) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// sameHandle compares two handles, treating non-comparable dynamic types
// as distinct.
func sameHandle(a, b Handle) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// bind attaches h to a known track, pushes the stored volume and, when the
// resume-on-bind policy is on, resumes an active track.
func (s *mixerState) bind(id string, h Handle) {
	e, ok := s.entries[id]
	if !ok {
		s.logger.Debug("Ignoring bind for unknown track", slog.String("track", id))
		return
	}
	if h == nil {
		s.unbind(id)
		return
	}
	if !s.handles.bind(id, h) {
		return
	}

	pct := percent(e.volume)
	s.invoke(id, "setVolume", func() error { return h.SetVolume(pct) })
	if e.active && s.resumeOnBind {
		s.invoke(id, "play", func() error { return h.Play() })
	}

	s.logger.Debug("Handle bound",
		slog.String("track", id),
		slog.Bool("active", e.active),
		slog.Int("volume", pct))
}

func (s *mixerState) unbind(id string) {
	s.handles.unbind(id)
}
