// Package media wraps device capture behind core.MediaSource so the
// orchestrator never touches camera or microphone APIs directly.
package media

import (
	"errors"

	"github.com/nortonjulian/chatforia-calls/internal/core"
)

// ErrNoCaptureSupport is returned on platforms without capture drivers.
// The orchestrator treats it like any other fatal acquisition failure.
var ErrNoCaptureSupport = errors.New("media capture not supported on this platform")

type localStream struct {
	tracks []core.LocalTrack
}

func (s *localStream) Tracks() []core.LocalTrack {
	out := make([]core.LocalTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *localStream) Stop() {
	for _, t := range s.tracks {
		_ = t.Stop()
	}
}
