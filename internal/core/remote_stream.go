package core

import "sync"

// RemoteStream accumulates remote tracks as they arrive. It is a single
// persistent container per session, never replaced mid-session, and is
// swapped for a fresh empty instance on cleanup so consuming UIs do not
// flicker on every new track.
type RemoteStream struct {
	mu     sync.RWMutex
	order  []RemoteTrack
	byID   map[string]struct{}
}

func NewRemoteStream() *RemoteStream {
	return &RemoteStream{byID: make(map[string]struct{})}
}

// Add appends the track unless a track with the same id is already
// present. Reports whether the track was added.
func (s *RemoteStream) Add(t RemoteTrack) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID()]; ok {
		return false
	}
	s.byID[t.ID()] = struct{}{}
	s.order = append(s.order, t)
	return true
}

// Tracks returns a snapshot of the accumulated tracks in arrival order.
func (s *RemoteStream) Tracks() []RemoteTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RemoteTrack, len(s.order))
	copy(out, s.order)
	return out
}

func (s *RemoteStream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
