package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// EnginePopulator registers the codecs a media source produces on the
// engine used to build the peer connection. The mediadevices source
// implements it; tests pass nil and get the default codec set.
type EnginePopulator interface {
	Populate(engine *webrtc.MediaEngine) error
}

// Factory builds pion peer connections configured with the ICE servers
// currently handed out by the signaling backend.
type Factory struct {
	ice       core.IceResolver
	populator EnginePopulator
	fallback  []string
}

func NewFactory(ice core.IceResolver, populator EnginePopulator, fallbackSTUN []string) *Factory {
	return &Factory{ice: ice, populator: populator, fallback: fallbackSTUN}
}

func (f *Factory) NewPeer(ctx context.Context) (core.PeerConnection, error) {
	servers, err := f.ice.IceServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve ice servers: %w", err)
	}

	m := &webrtc.MediaEngine{}
	if f.populator != nil {
		if err := f.populator.Populate(m); err != nil {
			return nil, fmt.Errorf("populate media engine: %w", err)
		}
	} else if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
	)

	cfg := webrtc.Configuration{ICEServers: toICEServers(servers)}
	if len(cfg.ICEServers) == 0 && len(f.fallback) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: f.fallback}}
	}

	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Conn{pc: pc}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_state", s.String()).Msg("Peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(fromCandidateInit(cand.ToJSON()))
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(remoteTrack{t: track})
		}
	})

	return c, nil
}

// Conn wraps one pion PeerConnection. Remote candidates arriving before
// the remote description is set are buffered and flushed right after.
type Conn struct {
	pc  *webrtc.PeerConnection
	buf candidateBuffer

	mu      sync.Mutex
	closed  bool
	onICE   func(domain.ICECandidate)
	onTrack func(core.RemoteTrack)
}

func (c *Conn) OnICECandidate(fn func(domain.ICECandidate)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Conn) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// AddLocalTrack attaches a captured track. Tracks produced by the media
// adapter satisfy webrtc.TrackLocal.
func (c *Conn) AddLocalTrack(t core.LocalTrack) error {
	tl, ok := t.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("track %s is not a webrtc.TrackLocal", t.ID())
	}
	if _, err := c.pc.AddTrack(tl); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	return nil
}

func (c *Conn) CreateOffer(_ context.Context) (domain.SDP, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.SDP{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return domain.SDP{}, fmt.Errorf("set local description: %w", err)
	}
	return fromSessionDescription(offer), nil
}

func (c *Conn) CreateAnswer(_ context.Context) (domain.SDP, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SDP{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return domain.SDP{}, fmt.Errorf("set local description: %w", err)
	}
	return fromSessionDescription(answer), nil
}

func (c *Conn) SetRemoteDescription(sdp domain.SDP) error {
	if err := c.pc.SetRemoteDescription(toSessionDescription(sdp)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	for _, ci := range c.buf.Flush() {
		if err := c.pc.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("flush buffered candidate")
		}
	}
	return nil
}

func (c *Conn) AddICECandidate(cand domain.ICECandidate) error {
	ci := toCandidateInit(cand)
	if c.buf.Hold(ci) {
		log.Debug().Str("module", "rtc").Msg("buffered candidate before remote description")
		return nil
	}
	return c.pc.AddICECandidate(ci)
}

func (c *Conn) StopSenders() {
	for _, s := range c.pc.GetSenders() {
		if err := s.Stop(); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("stop sender")
		}
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Msg("closed")
	}
}

type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r remoteTrack) ID() string   { return r.t.ID() }
func (r remoteTrack) Kind() string { return r.t.Kind().String() }

func toSessionDescription(s domain.SDP) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(s.Type), SDP: s.SDP}
}

func fromSessionDescription(sd webrtc.SessionDescription) domain.SDP {
	return domain.SDP{Type: sd.Type.String(), SDP: sd.SDP}
}

func toCandidateInit(c domain.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

func fromCandidateInit(ci webrtc.ICECandidateInit) domain.ICECandidate {
	return domain.ICECandidate{
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
}

func toICEServers(servers []domain.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}
