package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

func TestPush_DeliversEventsToSubscribers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(frames) })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	p := NewPush(wsURL, nil, time.Minute)
	t.Cleanup(p.Close)

	events, cancel := p.Subscribe()
	defer cancel()

	require.NoError(t, p.Connect(context.Background()))

	frames <- `{"event":"call:incoming","data":{"callId":"call-55","fromUser":{"id":"77"},"mode":"audio","offer":{"type":"offer","sdp":"v=0"}}}`
	frames <- `{"event":"bogus","data":{}}`
	frames <- `{"event":"call:ended","data":{"callId":"call-55","reason":"remote hangup"}}`

	select {
	case ev := <-events:
		in, ok := ev.(core.IncomingEvent)
		require.True(t, ok)
		assert.Equal(t, domain.CallID("call-55"), in.CallID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for incoming event")
	}

	// The unknown frame is skipped; the next delivery is the ended event.
	select {
	case ev := <-events:
		en, ok := ev.(core.EndedEvent)
		require.True(t, ok)
		assert.Equal(t, "remote hangup", en.Reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ended event")
	}
}

func TestPush_ConnectFailure(t *testing.T) {
	p := NewPush("ws://127.0.0.1:1/ws", nil, time.Minute)
	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial")
}

func TestPush_CanceledSubscriptionStopsDelivery(t *testing.T) {
	p := NewPush("ws://unused", nil, time.Minute)
	ch, cancel := p.Subscribe()
	cancel()

	p.publish(core.EndedEvent{CallID: "call-1"})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after cancel: %#v", ev)
	default:
	}
}
