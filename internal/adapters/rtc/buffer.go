package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// candidateBuffer queues remote candidates that arrive before the remote
// description is applied. Push-delivered candidates and the answer are
// not ordered relative to each other, so early arrivals are held and
// flushed in arrival order once the description lands.
type candidateBuffer struct {
	mu      sync.Mutex
	flushed bool
	pending []webrtc.ICECandidateInit
}

// Hold queues c and reports true while the buffer has not been flushed.
// After Flush it reports false and the caller applies candidates directly.
func (b *candidateBuffer) Hold(c webrtc.ICECandidateInit) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushed {
		return false
	}
	b.pending = append(b.pending, c)
	return true
}

// Flush marks the buffer as flushed and returns the queued candidates.
// Subsequent calls return nil.
func (b *candidateBuffer) Flush() []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed = true
	out := b.pending
	b.pending = nil
	return out
}
