// Package call implements the call-session state machine: establishing,
// negotiating and tearing down one audio/video session at a time.
package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// StartInput selects the callee: an existing user by id, or a bare phone
// number that the backend may resolve (or answer with an invite hint).
type StartInput struct {
	PeerID      domain.UserID   `json:"peerId"`
	PhoneNumber string          `json:"phoneNumber"`
	Mode        domain.CallMode `json:"mode"`
}

// Snapshot is the read-only view handed to subscribers. Consumers never
// mutate session state directly.
type Snapshot struct {
	State        domain.CallState      `json:"state"`
	Pending      bool                  `json:"pending"`
	Session      *domain.CallSession   `json:"session,omitempty"`
	Offer        *domain.IncomingOffer `json:"incomingOffer,omitempty"`
	Hint         *domain.InviteHint    `json:"inviteHint,omitempty"`
	RemoteTracks int                   `json:"remoteTracks"`
}

// peerEvent is what peer-connection callbacks enqueue for the control
// loop instead of mutating session state from pion goroutines. from
// identifies the producing connection; events from a replaced one are
// dropped.
type peerEvent struct {
	from      core.PeerConnection
	candidate *domain.ICECandidate
	track     core.RemoteTrack
}

// Orchestrator owns at most one live call session and one peer
// connection. All native resources are released on every exit path.
type Orchestrator struct {
	selfID domain.UserID
	sig    core.Signaler
	events core.EventSource
	peers  core.PeerFactory
	media  core.MediaSource

	mu      sync.Mutex
	state   domain.CallState
	pending bool
	session *domain.CallSession
	offer   *domain.IncomingOffer
	hint    *domain.InviteHint
	peer    core.PeerConnection
	local   core.LocalStream
	remote  *core.RemoteStream

	peerEvents chan peerEvent

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

func New(selfID domain.UserID, sig core.Signaler, events core.EventSource, peers core.PeerFactory, media core.MediaSource) *Orchestrator {
	return &Orchestrator{
		selfID:     selfID,
		sig:        sig,
		events:     events,
		peers:      peers,
		media:      media,
		state:      domain.StateIdle,
		remote:     core.NewRemoteStream(),
		peerEvents: make(chan peerEvent, 64),
		subs:       make(map[int]chan Snapshot),
	}
}

// StartCall dials an existing user or a phone number. The session
// returned carries the callId assigned by the backend.
func (o *Orchestrator) StartCall(ctx context.Context, in StartInput) (*domain.CallSession, error) {
	if in.PeerID == "" && in.PhoneNumber == "" {
		return nil, domain.ErrNoCallee
	}
	if in.Mode == "" {
		in.Mode = domain.ModeAudio
	}
	return o.startOutbound(ctx, in)
}

func (o *Orchestrator) startOutbound(ctx context.Context, in StartInput) (*domain.CallSession, error) {
	o.mu.Lock()
	o.hint = nil
	// Starting a new call releases the previous one's capture and
	// connection before any new state is installed.
	o.releaseLocked()
	o.state = domain.StateDialing
	o.pending = true
	o.session = &domain.CallSession{
		SelfID:      o.selfID,
		PeerID:      in.PeerID,
		PhoneNumber: in.PhoneNumber,
		Mode:        in.Mode,
		Direction:   domain.DirectionOutbound,
	}
	o.mu.Unlock()
	o.publish()

	peer, err := o.peers.NewPeer(ctx)
	if err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("create peer: %w", err)
	}
	o.attachPeer(peer)

	stream, err := o.media.Acquire(ctx, in.Mode.Video())
	if err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("acquire media: %w", err)
	}
	o.mu.Lock()
	o.local = stream
	o.mu.Unlock()

	for _, t := range stream.Tracks() {
		if err := peer.AddLocalTrack(t); err != nil {
			o.Cleanup()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}

	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		o.Cleanup()
		return nil, err
	}

	resp, err := o.sig.Invite(ctx, core.InviteRequest{
		CalleeID:    in.PeerID,
		PhoneNumber: in.PhoneNumber,
		Mode:        in.Mode,
		Offer:       offer,
	})
	if err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("send invite: %w", err)
	}

	o.mu.Lock()
	if o.peer != peer {
		// Torn down while the invite was in flight.
		o.mu.Unlock()
		return nil, domain.ErrCallTornDown
	}
	o.session.ID = resp.CallID
	if resp.PeerID != "" {
		o.session.PeerID = resp.PeerID
	}
	if resp.RequiresInvite || resp.InviteURL != "" {
		o.hint = &domain.InviteHint{RequiresInvite: resp.RequiresInvite, InviteURL: resp.InviteURL}
	}
	o.state = domain.StateActive
	sess := *o.session
	o.mu.Unlock()
	o.publish()

	log.Info().
		Str("module", "call").
		Str("call_id", string(sess.ID)).
		Str("peer_id", string(sess.PeerID)).
		Str("mode", string(sess.Mode)).
		Msg("outbound call set up")
	return &sess, nil
}

// AcceptCall answers the pending incoming offer. No-op when nothing is
// ringing.
func (o *Orchestrator) AcceptCall(ctx context.Context) (*domain.CallSession, error) {
	o.mu.Lock()
	offer := o.offer
	if offer == nil {
		o.mu.Unlock()
		return nil, nil
	}
	o.releaseLocked()
	o.mu.Unlock()

	peer, err := o.peers.NewPeer(ctx)
	if err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("create peer: %w", err)
	}
	o.attachPeer(peer)

	stream, err := o.media.Acquire(ctx, offer.Mode.Video())
	if err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("acquire media: %w", err)
	}
	o.mu.Lock()
	o.local = stream
	o.mu.Unlock()

	for _, t := range stream.Tracks() {
		if err := peer.AddLocalTrack(t); err != nil {
			o.Cleanup()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}

	if err := peer.SetRemoteDescription(offer.Offer); err != nil {
		o.Cleanup()
		return nil, err
	}
	answer, err := peer.CreateAnswer(ctx)
	if err != nil {
		o.Cleanup()
		return nil, err
	}
	if err := o.sig.Answer(ctx, offer.CallID, answer); err != nil {
		o.Cleanup()
		return nil, fmt.Errorf("send answer: %w", err)
	}

	o.mu.Lock()
	if o.peer != peer {
		o.mu.Unlock()
		return nil, domain.ErrCallTornDown
	}
	o.session = &domain.CallSession{
		ID:        offer.CallID,
		SelfID:    o.selfID,
		PeerID:    offer.From.ID,
		Mode:      offer.Mode,
		Direction: domain.DirectionInbound,
	}
	o.state = domain.StateActive
	o.pending = false
	o.offer = nil
	sess := *o.session
	o.mu.Unlock()
	o.publish()

	log.Info().
		Str("module", "call").
		Str("call_id", string(sess.ID)).
		Str("peer_id", string(sess.PeerID)).
		Msg("incoming call accepted")
	return &sess, nil
}

// RejectCall declines the pending incoming offer. The end signal is
// best-effort; a send failure never blocks the local reject.
func (o *Orchestrator) RejectCall(ctx context.Context) error {
	o.mu.Lock()
	offer := o.offer
	if offer == nil {
		o.mu.Unlock()
		return nil
	}
	o.offer = nil
	if o.state == domain.StateRinging {
		o.state = domain.StateIdle
	}
	o.mu.Unlock()

	if err := o.sig.End(ctx, offer.CallID, "rejected"); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("call_id", string(offer.CallID)).Msg("reject signal failed")
	}
	o.publish()
	return nil
}

// EndCall hangs up the active or ringing call. No-op when neither holds
// a callId. Cleanup runs regardless of the end request outcome.
func (o *Orchestrator) EndCall(ctx context.Context, reason string) error {
	o.mu.Lock()
	var callID domain.CallID
	if o.session != nil && o.session.ID != "" {
		callID = o.session.ID
	} else if o.offer != nil {
		callID = o.offer.CallID
	}
	o.mu.Unlock()
	if callID == "" {
		return nil
	}

	if err := o.sig.End(ctx, callID, reason); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("call_id", string(callID)).Msg("end signal failed")
	}
	o.Cleanup()
	return nil
}

// Cleanup releases every native resource and resets to idle: local
// tracks stopped, senders stopped, peer connection closed and dropped,
// remote stream replaced with a fresh empty instance. Idempotent.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	o.releaseLocked()
	o.session = nil
	o.offer = nil
	o.hint = nil
	o.pending = false
	o.state = domain.StateIdle
	o.mu.Unlock()
	o.publish()
}

// releaseLocked stops the local stream, stops senders, closes the peer
// connection and swaps in an empty remote stream. Caller holds o.mu.
func (o *Orchestrator) releaseLocked() {
	if o.local != nil {
		o.local.Stop()
		o.local = nil
	}
	if o.peer != nil {
		o.peer.StopSenders()
		o.peer.Close()
		o.peer = nil
	}
	o.remote = core.NewRemoteStream()
}

// attachPeer routes the peer's callbacks into the control loop queue and
// installs it as the single live connection.
func (o *Orchestrator) attachPeer(peer core.PeerConnection) {
	peer.OnICECandidate(func(c domain.ICECandidate) {
		o.enqueue(peerEvent{from: peer, candidate: &c})
	})
	peer.OnTrack(func(t core.RemoteTrack) {
		o.enqueue(peerEvent{from: peer, track: t})
	})
	o.mu.Lock()
	if o.peer != nil && o.peer != peer {
		o.peer.Close()
	}
	o.peer = peer
	o.mu.Unlock()
}

func (o *Orchestrator) enqueue(ev peerEvent) {
	select {
	case o.peerEvents <- ev:
	default:
		log.Warn().Str("module", "call").Msg("peer event queue full, dropped")
	}
}

func (o *Orchestrator) State() domain.CallState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a copy of the current call session, or nil when idle.
func (o *Orchestrator) Session() *domain.CallSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	s := *o.session
	return &s
}

// Offer returns a copy of the pending incoming offer, if any.
func (o *Orchestrator) Offer() *domain.IncomingOffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.offer == nil {
		return nil
	}
	of := *o.offer
	return &of
}

// InviteHint returns a copy of the hint from the last phone invite.
func (o *Orchestrator) InviteHint() *domain.InviteHint {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hint == nil {
		return nil
	}
	h := *o.hint
	return &h
}

func (o *Orchestrator) LocalStream() core.LocalStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.local
}

// RemoteStream returns the accumulator for the current session. After
// cleanup the returned instance is a fresh, track-less one.
func (o *Orchestrator) RemoteStream() *core.RemoteStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remote
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{State: o.state, Pending: o.pending, RemoteTracks: o.remote.Len()}
	if o.session != nil {
		s := *o.session
		snap.Session = &s
	}
	if o.offer != nil {
		of := *o.offer
		snap.Offer = &of
	}
	if o.hint != nil {
		h := *o.hint
		snap.Hint = &h
	}
	return snap
}

// Subscribe registers a state-change feed for a UI consumer. A slow
// subscriber has snapshots dropped rather than stalling the session.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	o.subMu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) publish() {
	snap := o.Snapshot()
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			log.Debug().Str("module", "call").Int("sub", id).Msg("slow subscriber, snapshot dropped")
		}
	}
}
