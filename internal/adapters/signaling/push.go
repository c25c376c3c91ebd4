package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

const defaultPingPeriod = 54 * time.Second

// Push reads inbound call events from the realtime websocket and fans
// them out to subscribers. Events on the socket are FIFO; a subscriber
// that cannot keep up has events dropped rather than stalling the loop.
type Push struct {
	url        string
	header     http.Header
	pingPeriod time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[int]chan core.Event
	nextID int

	closed chan struct{}
	once   sync.Once
}

func NewPush(url string, header http.Header, pingPeriod time.Duration) *Push {
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &Push{
		url:        url,
		header:     header,
		pingPeriod: pingPeriod,
		subs:       make(map[int]chan core.Event),
		closed:     make(chan struct{}),
	}
}

// Connect dials the push websocket and starts the read and ping loops.
func (p *Push) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, p.header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	log.Info().Str("module", "signaling").Str("url", p.url).Msg("push channel connected")

	go p.readLoop(conn)
	go p.pingLoop(conn)
	return nil
}

func (p *Push) Subscribe() (<-chan core.Event, func()) {
	ch := make(chan core.Event, 32)
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *Push) Close() {
	p.once.Do(func() { close(p.closed) })
	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.mu.Unlock()
}

func (p *Push) readLoop(conn *websocket.Conn) {
	defer p.Close()

	for {
		select {
		case <-p.closed:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-p.closed:
			default:
				log.Error().Err(err).Str("module", "signaling").Msg("push read error")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "signaling").Msg("bad push envelope")
			continue
		}
		ev, err := decodeEvent(env)
		if err != nil {
			log.Warn().Err(err).Str("module", "signaling").Str("event", env.Event).Msg("unhandled push event")
			continue
		}
		p.publish(ev)
	}
}

func (p *Push) publish(ev core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("module", "signaling").Int("sub", id).Msg("slow subscriber, event dropped")
		}
	}
}

func (p *Push) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(p.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			if err != nil {
				select {
				case <-p.closed:
				default:
					log.Error().Err(err).Str("module", "signaling").Msg("push ping error")
				}
				return
			}
		}
	}
}

// envelope is the wire frame of one push event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeEvent(env envelope) (core.Event, error) {
	switch env.Event {
	case "call:incoming":
		var p struct {
			CallID domain.CallID   `json:"callId"`
			From   domain.User     `json:"fromUser"`
			Mode   domain.CallMode `json:"mode"`
			Offer  domain.SDP      `json:"offer"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode call:incoming: %w", err)
		}
		return core.IncomingEvent{CallID: p.CallID, From: p.From, Mode: p.Mode, Offer: p.Offer}, nil

	case "call:answer":
		var p struct {
			CallID domain.CallID `json:"callId"`
			Answer domain.SDP    `json:"answer"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode call:answer: %w", err)
		}
		return core.AnswerEvent{CallID: p.CallID, Answer: p.Answer}, nil

	case "call:candidate":
		var p struct {
			Candidate domain.ICECandidate `json:"candidate"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode call:candidate: %w", err)
		}
		return core.CandidateEvent{Candidate: p.Candidate}, nil

	case "call:ended":
		var p struct {
			CallID domain.CallID `json:"callId"`
			Reason string        `json:"reason"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return nil, fmt.Errorf("decode call:ended: %w", err)
			}
		}
		return core.EndedEvent{CallID: p.CallID, Reason: p.Reason}, nil
	}
	return nil, fmt.Errorf("unknown event %q", env.Event)
}
