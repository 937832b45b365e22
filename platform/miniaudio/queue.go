// SPDX-License-Identifier: EPL-2.0

package miniaudio

import (
	"sync"

	"github.com/ik5/slaudio/platform"
)

// bufferQueue emulates a native buffer queue. Buffers are consumed (players)
// or filled (recorders) strictly in order.
type bufferQueue struct {
	mu       sync.Mutex
	capacity int
	bufs     [][]byte
	// offset is how much of bufs[0] has been transferred.
	offset   int
	index    int
	callback func()
}

func newBufferQueue(capacity int) *bufferQueue {
	return &bufferQueue{capacity: capacity}
}

func (q *bufferQueue) Enqueue(buf []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.bufs) >= q.capacity {
		return platform.ErrBufferQueueFull
	}
	q.bufs = append(q.bufs, buf)
	return nil
}

func (q *bufferQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bufs = nil
	q.offset = 0
	q.index = 0
	return nil
}

func (q *bufferQueue) State() (platform.QueueState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return platform.QueueState{Count: len(q.bufs), Index: q.index}, nil
}

func (q *bufferQueue) RegisterCallback(fn func()) error {
	q.mu.Lock()
	q.callback = fn
	q.mu.Unlock()
	return nil
}

func (q *bufferQueue) registered() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.callback
}

// render copies queued audio into dst until either runs out. It returns the
// bytes written and how many buffers were completed.
func (q *bufferQueue) render(dst []byte, swap bool) (n, completed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for n < len(dst) && len(q.bufs) > 0 {
		c := copy(dst[n:], q.bufs[0][q.offset:])
		if swap {
			swap16(dst[n : n+c])
		}
		n += c
		q.offset += c
		if q.offset == len(q.bufs[0]) {
			q.pop()
			completed++
		}
	}
	return n, completed
}

// capture copies src into queued buffers until either runs out. It returns
// the bytes consumed and how many buffers were filled.
func (q *bufferQueue) capture(src []byte, swap bool) (n, completed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for n < len(src) && len(q.bufs) > 0 {
		buf := q.bufs[0][q.offset:]
		c := copy(buf, src[n:])
		if swap {
			swap16(buf[:c])
		}
		n += c
		q.offset += c
		if q.offset == len(q.bufs[0]) {
			q.pop()
			completed++
		}
	}
	return n, completed
}

func (q *bufferQueue) pop() {
	q.bufs[0] = nil
	q.bufs = q.bufs[1:]
	q.offset = 0
	q.index++
}

func swap16(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}
