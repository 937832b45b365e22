// SPDX-License-Identifier: EPL-2.0

package miniaudio

import (
	"sync"
	"time"

	"github.com/ik5/slaudio/platform"
)

// head is the play or record position of one object, with a one-shot
// marker.
type head struct {
	mu       sync.Mutex
	rate     int
	frames   int64
	marker   time.Duration
	armed    bool
	mask     platform.Event
	callback func(platform.Event)
}

func (h *head) position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *head) positionLocked() time.Duration {
	if h.rate <= 0 {
		return 0
	}
	return time.Duration(h.frames * int64(time.Second) / int64(h.rate)).Truncate(time.Millisecond)
}

func (h *head) setMarker(pos time.Duration) {
	h.mu.Lock()
	h.marker = pos
	h.armed = pos > 0
	h.mu.Unlock()
}

func (h *head) setMask(mask platform.Event) {
	h.mu.Lock()
	h.mask = mask
	h.mu.Unlock()
}

func (h *head) register(fn func(platform.Event)) {
	h.mu.Lock()
	h.callback = fn
	h.mu.Unlock()
}

// advance moves the head by frames and returns the callback to run when the
// marker was reached.
func (h *head) advance(frames int) func(platform.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.frames += int64(frames)
	if !h.armed || h.positionLocked() < h.marker {
		return nil
	}
	h.armed = false
	if h.mask&platform.EventHeadAtMarker == 0 {
		return nil
	}
	return h.callback
}

// due returns the callback of a marker that is already behind the head.
func (h *head) due() func(platform.Event) {
	return h.advance(0)
}
