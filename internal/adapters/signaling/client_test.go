package signaling

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newTestServer(t *testing.T, status int, respBody string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		rec.body = b
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL), rec
}

func TestClient_Invite_ByUser(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK,
		`{"callId":"call-123","peerId":"123"}`)

	resp, err := c.Invite(context.Background(), core.InviteRequest{
		CalleeID: "123",
		Mode:     domain.ModeVideo,
		Offer:    domain.SDP{Type: "offer", SDP: "v=0"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/calls/invite", rec.path)
	assert.Equal(t, "application/json", rec.header.Get("Content-Type"))
	assert.NotEmpty(t, rec.header.Get("X-Request-Id"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "123", sent["calleeId"])
	assert.NotContains(t, sent, "phoneNumber", "phone number omitted for user calls")
	assert.Equal(t, "video", sent["mode"])

	assert.Equal(t, domain.CallID("call-123"), resp.CallID)
	assert.Equal(t, domain.UserID("123"), resp.PeerID)
}

func TestClient_Invite_ByPhone(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK,
		`{"callId":"call-9","requiresInvite":true,"inviteUrl":"https://example.com/i/abc"}`)

	resp, err := c.Invite(context.Background(), core.InviteRequest{
		PhoneNumber: "+15551234567",
		Mode:        domain.ModeAudio,
		Offer:       domain.SDP{Type: "offer", SDP: "v=0"},
	})
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "+15551234567", sent["phoneNumber"])
	assert.NotContains(t, sent, "calleeId")

	assert.True(t, resp.RequiresInvite)
	assert.Equal(t, "https://example.com/i/abc", resp.InviteURL)
}

func TestClient_Invite_BackendError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadGateway, `{"error":"no media server"}`)

	_, err := c.Invite(context.Background(), core.InviteRequest{CalleeID: "123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestClient_Answer(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{}`)

	err := c.Answer(context.Background(), "call-55", domain.SDP{Type: "answer", SDP: "v=0"})
	require.NoError(t, err)

	assert.Equal(t, "/calls/answer", rec.path)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "call-55", sent["callId"])
}

func TestClient_Candidate(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{}`)

	err := c.Candidate(context.Background(), core.CandidateRequest{
		CallID:    "call-55",
		ToUserID:  "77",
		Candidate: domain.ICECandidate{Candidate: "candidate:abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/calls/candidate", rec.path)
}

func TestClient_End_OmitsEmptyReason(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{}`)

	require.NoError(t, c.End(context.Background(), "call-55", ""))

	assert.Equal(t, "/calls/end", rec.path)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "call-55", sent["callId"])
	assert.NotContains(t, sent, "reason")
}

func TestClient_IceServers(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK,
		`{"iceServers":[{"urls":["stun:stun.example.com:3478"]},{"urls":["turn:turn.example.com"],"username":"u","credential":"p"}]}`)

	servers, err := c.IceServers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/webrtc/ice-servers", rec.path)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "p", servers[1].Credential)
}

func TestClient_IceServers_Unauthorized(t *testing.T) {
	c, _ := newTestServer(t, http.StatusUnauthorized, `{"error":"no session"}`)

	_, err := c.IceServers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 401")
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
		check func(t *testing.T, ev core.Event)
	}{
		{
			name:  "incoming",
			event: "call:incoming",
			data:  `{"callId":"call-55","fromUser":{"id":"77","username":"bea"},"mode":"audio","offer":{"type":"offer","sdp":"v=0"}}`,
			check: func(t *testing.T, ev core.Event) {
				in, ok := ev.(core.IncomingEvent)
				require.True(t, ok)
				assert.Equal(t, domain.CallID("call-55"), in.CallID)
				assert.Equal(t, "bea", in.From.Username)
				assert.Equal(t, domain.ModeAudio, in.Mode)
				assert.Equal(t, "offer", in.Offer.Type)
			},
		},
		{
			name:  "answer",
			event: "call:answer",
			data:  `{"callId":"call-55","answer":{"type":"answer","sdp":"v=0"}}`,
			check: func(t *testing.T, ev core.Event) {
				an, ok := ev.(core.AnswerEvent)
				require.True(t, ok)
				assert.Equal(t, domain.CallID("call-55"), an.CallID)
				assert.Equal(t, "answer", an.Answer.Type)
			},
		},
		{
			name:  "candidate",
			event: "call:candidate",
			data:  `{"candidate":{"candidate":"candidate:abc","sdpMid":"0"}}`,
			check: func(t *testing.T, ev core.Event) {
				ca, ok := ev.(core.CandidateEvent)
				require.True(t, ok)
				assert.Equal(t, "candidate:abc", ca.Candidate.Candidate)
				require.NotNil(t, ca.Candidate.SDPMid)
				assert.Equal(t, "0", *ca.Candidate.SDPMid)
			},
		},
		{
			name:  "ended",
			event: "call:ended",
			data:  `{"callId":"call-55","reason":"remote hangup"}`,
			check: func(t *testing.T, ev core.Event) {
				en, ok := ev.(core.EndedEvent)
				require.True(t, ok)
				assert.Equal(t, domain.CallID("call-55"), en.CallID)
				assert.Equal(t, "remote hangup", en.Reason)
			},
		},
		{
			name:  "ended without payload",
			event: "call:ended",
			data:  "",
			check: func(t *testing.T, ev core.Event) {
				en, ok := ev.(core.EndedEvent)
				require.True(t, ok)
				assert.Empty(t, en.CallID)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := decodeEvent(envelope{Event: tc.event, Data: json.RawMessage(tc.data)})
			require.NoError(t, err)
			tc.check(t, ev)
		})
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	_, err := decodeEvent(envelope{Event: "call:mute", Data: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call:mute")
}
