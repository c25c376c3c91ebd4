package domain

// SDP is the wire shape of a session description, offer or answer.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is the wire shape of one ICE candidate.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// ICEServer holds STUN/TURN server configuration handed out by the backend.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// IncomingOffer is a remote invite waiting for a local accept or reject.
// Consumed and cleared by AcceptCall/RejectCall.
type IncomingOffer struct {
	CallID CallID   `json:"callId"`
	From   User     `json:"fromUser"`
	Mode   CallMode `json:"mode"`
	Offer  SDP      `json:"offer"`
}

// InviteHint is produced for phone-number calls where the remote party is
// not a resolvable user: the caller may redirect to an out-of-band invite.
type InviteHint struct {
	RequiresInvite bool   `json:"requiresInvite"`
	InviteURL      string `json:"inviteUrl,omitempty"`
}
