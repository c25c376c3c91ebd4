package core

import (
	"context"

	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// LocalTrack is one captured device track. Stop releases the underlying
// device resource and must be idempotent.
type LocalTrack interface {
	ID() string
	Stop() error
}

// LocalStream is the set of tracks acquired for one call.
// Exclusively owned by the active session.
type LocalStream interface {
	Tracks() []LocalTrack
	// Stop stops every track. Safe to call more than once.
	Stop()
}

// MediaSource abstracts device capture so the orchestrator is testable
// without real cameras or microphones. Audio is always requested; video
// only when video is true. Permission/device errors propagate unmodified.
type MediaSource interface {
	Acquire(ctx context.Context, video bool) (LocalStream, error)
}

// RemoteTrack is a remote media track as seen by the session.
type RemoteTrack interface {
	ID() string
	Kind() string
}

// PeerConnection is the narrow surface of a native peer connection the
// orchestrator needs. Exactly one live instance exists per session.
type PeerConnection interface {
	// AddLocalTrack attaches a captured track for sending.
	AddLocalTrack(t LocalTrack) error
	// CreateOffer creates an SDP offer and sets it as the local description.
	CreateOffer(ctx context.Context) (domain.SDP, error)
	// CreateAnswer creates an SDP answer and sets it as the local description.
	CreateAnswer(ctx context.Context) (domain.SDP, error)
	SetRemoteDescription(sdp domain.SDP) error
	AddICECandidate(c domain.ICECandidate) error
	// OnICECandidate sets the callback for newly gathered local candidates.
	OnICECandidate(fn func(domain.ICECandidate))
	// OnTrack sets the callback invoked when a remote track arrives.
	OnTrack(fn func(RemoteTrack))
	// StopSenders stops every RTP sender on the connection.
	StopSenders()
	// Close shuts the connection down. Idempotent, never panics on an
	// already-closed connection.
	Close()
}

// PeerFactory builds peer connections. Resolving ICE servers happens
// inside NewPeer; a resolution failure aborts the call attempt.
type PeerFactory interface {
	NewPeer(ctx context.Context) (PeerConnection, error)
}
