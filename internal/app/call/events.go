package call

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// Run is the control loop: it consumes push events from the signaling
// transport and events enqueued by the peer connection callbacks.
// Events within each source arrive FIFO; nothing is ordered between the
// two, so the handlers below guard on peer existence rather than exact
// session state.
func (o *Orchestrator) Run(ctx context.Context) {
	ch, cancel := o.events.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			o.handleEvent(ctx, ev)
		case pe := <-o.peerEvents:
			o.handlePeerEvent(ctx, pe)
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev core.Event) {
	switch e := ev.(type) {
	case core.IncomingEvent:
		o.mu.Lock()
		o.offer = &domain.IncomingOffer{CallID: e.CallID, From: e.From, Mode: e.Mode, Offer: e.Offer}
		if o.state == domain.StateIdle {
			o.state = domain.StateRinging
		}
		o.mu.Unlock()
		log.Info().
			Str("module", "call").
			Str("call_id", string(e.CallID)).
			Str("from", string(e.From.ID)).
			Str("mode", string(e.Mode)).
			Msg("incoming call")
		o.publish()

	case core.AnswerEvent:
		o.mu.Lock()
		peer := o.peer
		o.mu.Unlock()
		if peer == nil {
			// An answer can race the dial sequence; without a peer
			// connection there is nothing to apply it to.
			return
		}
		if err := peer.SetRemoteDescription(e.Answer); err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("apply remote answer")
		}
		o.mu.Lock()
		if o.session == nil {
			o.session = &domain.CallSession{ID: e.CallID, SelfID: o.selfID, Direction: domain.DirectionOutbound}
		} else if o.session.ID == "" {
			o.session.ID = e.CallID
		}
		o.state = domain.StateActive
		o.pending = false
		o.mu.Unlock()
		o.publish()

	case core.CandidateEvent:
		o.mu.Lock()
		peer := o.peer
		o.mu.Unlock()
		if peer == nil {
			return
		}
		if err := peer.AddICECandidate(e.Candidate); err != nil {
			log.Debug().Err(err).Str("module", "call").Msg("add remote candidate")
		}

	case core.EndedEvent:
		log.Info().
			Str("module", "call").
			Str("call_id", string(e.CallID)).
			Str("reason", e.Reason).
			Msg("remote ended call")
		o.Cleanup()
	}
}

func (o *Orchestrator) handlePeerEvent(ctx context.Context, pe peerEvent) {
	o.mu.Lock()
	if pe.from != o.peer {
		o.mu.Unlock()
		// The producing connection was replaced or torn down; whatever
		// it emitted belongs to a dead session.
		log.Debug().Str("module", "call").Msg("dropping event from replaced peer")
		return
	}
	rs := o.remote
	var callID domain.CallID
	var toUser domain.UserID
	if o.session != nil && o.session.ID != "" {
		callID = o.session.ID
		toUser = o.session.PeerID
	} else if o.offer != nil {
		callID = o.offer.CallID
		toUser = o.offer.From.ID
	}
	o.mu.Unlock()

	if pe.track != nil {
		if rs.Add(pe.track) {
			o.publish()
		}
		return
	}
	if pe.candidate == nil {
		return
	}

	if callID == "" {
		// No call id resolvable yet: drop, candidates are not queued.
		log.Debug().Str("module", "call").Msg("dropping local candidate without call id")
		return
	}
	err := o.sig.Candidate(ctx, core.CandidateRequest{
		CallID:    callID,
		ToUserID:  toUser,
		Candidate: *pe.candidate,
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "call").Str("call_id", string(callID)).Msg("candidate send failed")
	}
}
