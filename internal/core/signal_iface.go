package core

import (
	"context"

	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// InviteRequest is the body of the outbound invite call. Exactly one of
// CalleeID or PhoneNumber is set.
type InviteRequest struct {
	CalleeID    domain.UserID   `json:"calleeId,omitempty"`
	PhoneNumber string          `json:"phoneNumber,omitempty"`
	Mode        domain.CallMode `json:"mode"`
	Offer       domain.SDP      `json:"offer"`
}

type InviteResponse struct {
	CallID         domain.CallID `json:"callId"`
	PeerID         domain.UserID `json:"peerId,omitempty"`
	PhoneNumber    string        `json:"phoneNumber,omitempty"`
	RequiresInvite bool          `json:"requiresInvite,omitempty"`
	InviteURL      string        `json:"inviteUrl,omitempty"`
}

// CandidateRequest forwards one locally gathered ICE candidate.
type CandidateRequest struct {
	CallID    domain.CallID       `json:"callId"`
	ToUserID  domain.UserID       `json:"toUserId,omitempty"`
	Candidate domain.ICECandidate `json:"candidate"`
}

// IceResolver fetches the current relay/stun server list for a session.
type IceResolver interface {
	IceServers(ctx context.Context) ([]domain.ICEServer, error)
}

// Signaler sends outbound signaling actions as request/response calls.
// Candidate and End are best-effort from the orchestrator's perspective;
// the returned errors are logged and discarded by the caller.
type Signaler interface {
	IceResolver
	Invite(ctx context.Context, req InviteRequest) (*InviteResponse, error)
	Answer(ctx context.Context, callID domain.CallID, answer domain.SDP) error
	Candidate(ctx context.Context, req CandidateRequest) error
	End(ctx context.Context, callID domain.CallID, reason string) error
}

// Event is one inbound push event from the signaling transport.
// Delivery is FIFO within the push direction; no ordering is guaranteed
// relative to outbound request/response calls.
type Event interface{ event() }

// IncomingEvent announces a remote invite.
type IncomingEvent struct {
	CallID domain.CallID
	From   domain.User
	Mode   domain.CallMode
	Offer  domain.SDP
}

// AnswerEvent carries the remote answer for an outbound call.
type AnswerEvent struct {
	CallID domain.CallID
	Answer domain.SDP
}

// CandidateEvent carries one remote ICE candidate.
type CandidateEvent struct {
	Candidate domain.ICECandidate
}

// EndedEvent signals remote termination; always authoritative.
type EndedEvent struct {
	CallID domain.CallID
	Reason string
}

func (IncomingEvent) event()  {}
func (AnswerEvent) event()    {}
func (CandidateEvent) event() {}
func (EndedEvent) event()     {}

// EventSource exposes the inbound push channel as a subscription.
type EventSource interface {
	Subscribe() (<-chan Event, func())
}
