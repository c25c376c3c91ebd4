package domain

import "errors"

var (
	// ErrNoCallee is returned when a call is started without a callee id
	// and without a phone number.
	ErrNoCallee = errors.New("no callee id or phone number")
	// ErrCallTornDown is returned when a call is ended while its
	// negotiation is still in flight.
	ErrCallTornDown = errors.New("call torn down during negotiation")
)

type CallID string

type CallMode string

const (
	ModeAudio CallMode = "audio"
	ModeVideo CallMode = "video"
)

// Video reports whether the mode requires a camera track.
func (m CallMode) Video() bool { return m == ModeVideo }

type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

type CallState string

const (
	StateIdle    CallState = "idle"
	StateDialing CallState = "dialing"
	StateRinging CallState = "ringing"
	StateActive  CallState = "active"
)

// CallSession identifies one logical call. ID is assigned by the signaling
// backend once an invite is acknowledged and is empty before that point.
// PeerID is empty when dialing a bare phone number that has not resolved
// to a user yet.
type CallSession struct {
	ID          CallID        `json:"callId"`
	SelfID      UserID        `json:"selfId"`
	PeerID      UserID        `json:"peerId,omitempty"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	Mode        CallMode      `json:"mode"`
	Direction   CallDirection `json:"direction"`
}
