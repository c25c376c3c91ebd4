//go:build linux && cgo

package media

import (
	"context"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
)

// Source captures local camera/microphone tracks via pion/mediadevices
// (V4L2 + malgo) with VP8 and Opus encoders.
type Source struct {
	selector *mediadevices.CodecSelector
}

func NewSource() (*Source, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &Source{selector: selector}, nil
}

// Populate registers the source's codecs on the engine that will build
// the peer connection, so captured tracks negotiate correctly.
func (s *Source) Populate(engine *webrtc.MediaEngine) error {
	s.selector.Populate(engine)
	return nil
}

// Acquire opens the microphone, plus the camera when video is set.
// Device and permission errors are returned unmodified.
func (s *Source) Acquire(_ context.Context, video bool) (core.LocalStream, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Codec: s.selector,
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	if video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Raw frame formats only. MJPEG camera nodes emit frames the
			// VP8 encoder cannot take.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}

	tracks := stream.GetTracks()
	out := make([]core.LocalTrack, 0, len(tracks))
	for _, t := range tracks {
		id := t.ID()
		t.OnEnded(func(err error) {
			if err != nil {
				log.Warn().Err(err).Str("module", "media").Str("track_id", id).Msg("local track ended")
			}
		})
		out = append(out, deviceTrack{Track: t})
	}
	log.Info().Str("module", "media").Bool("video", video).Int("tracks", len(out)).Msg("local media captured")
	return &localStream{tracks: out}, nil
}

// deviceTrack keeps the mediadevices track usable as a webrtc.TrackLocal
// while exposing the Stop the session cleanup expects.
type deviceTrack struct {
	mediadevices.Track
}

func (t deviceTrack) Stop() error { return t.Close() }
