//go:build !linux || !cgo

package media

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/nortonjulian/chatforia-calls/internal/core"
)

// Source on non-Linux platforms has no capture drivers; Acquire always
// fails and the call attempt is rejected with ErrNoCaptureSupport.
type Source struct{}

func NewSource() (*Source, error) { return &Source{}, nil }

func (s *Source) Populate(engine *webrtc.MediaEngine) error {
	return engine.RegisterDefaultCodecs()
}

func (s *Source) Acquire(_ context.Context, _ bool) (core.LocalStream, error) {
	return nil, ErrNoCaptureSupport
}
