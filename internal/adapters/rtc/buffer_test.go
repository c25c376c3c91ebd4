package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateBuffer_HoldsUntilFlush(t *testing.T) {
	var b candidateBuffer

	require.True(t, b.Hold(webrtc.ICECandidateInit{Candidate: "candidate:1"}))
	require.True(t, b.Hold(webrtc.ICECandidateInit{Candidate: "candidate:2"}))

	flushed := b.Flush()
	require.Len(t, flushed, 2)
	assert.Equal(t, "candidate:1", flushed[0].Candidate)
	assert.Equal(t, "candidate:2", flushed[1].Candidate)
}

func TestCandidateBuffer_DirectAfterFlush(t *testing.T) {
	var b candidateBuffer

	require.Empty(t, b.Flush())

	assert.False(t, b.Hold(webrtc.ICECandidateInit{Candidate: "candidate:3"}))
	assert.Empty(t, b.Flush(), "second flush must not replay anything")
}
