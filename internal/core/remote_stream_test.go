package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrack struct {
	id   string
	kind string
}

func (t stubTrack) ID() string   { return t.id }
func (t stubTrack) Kind() string { return t.kind }

func TestRemoteStream_AddIsIdempotentByID(t *testing.T) {
	s := NewRemoteStream()

	assert.True(t, s.Add(stubTrack{id: "a", kind: "audio"}))
	assert.False(t, s.Add(stubTrack{id: "a", kind: "audio"}), "same track id is kept once")
	assert.True(t, s.Add(stubTrack{id: "b", kind: "video"}))

	assert.Equal(t, 2, s.Len())
}

func TestRemoteStream_TracksPreserveArrivalOrder(t *testing.T) {
	s := NewRemoteStream()
	s.Add(stubTrack{id: "b", kind: "video"})
	s.Add(stubTrack{id: "a", kind: "audio"})

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "b", tracks[0].ID())
	assert.Equal(t, "a", tracks[1].ID())
}

func TestRemoteStream_TracksReturnsSnapshot(t *testing.T) {
	s := NewRemoteStream()
	s.Add(stubTrack{id: "a", kind: "audio"})

	tracks := s.Tracks()
	s.Add(stubTrack{id: "b", kind: "video"})

	assert.Len(t, tracks, 1, "earlier snapshot is unaffected by later adds")
	assert.Equal(t, 2, s.Len())
}
