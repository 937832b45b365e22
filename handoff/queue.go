// SPDX-License-Identifier: EPL-2.0

// Package handoff provides the bounded queue a full-duplex stream uses to pass
// filled capture buffers from the recorder callback to the player callback.
package handoff

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidCapacity is returned by New for a capacity below one.
var ErrInvalidCapacity = errors.New("handoff: capacity must be positive")

// Queue is a fixed-capacity, lock-free single-producer, single-consumer queue
// of buffer slot indexes.
//
// A slot is either empty or holds one index. Push only succeeds when the slot
// under the write cursor is empty and Pop only succeeds when the slot under the
// read cursor holds an index, so neither side ever waits on the other.
//
// Memory ordering: Go's sync/atomic is sequentially consistent. The producer
// fills the buffer behind an index before storing the index into its slot, and
// the consumer loads the slot before touching the buffer, so the consumer
// never observes a partially written buffer.
//
// Thread assignment:
//   - Push: producer (capture callback) only
//   - Pop: consumer (playback callback) only
//   - Size, Cap: any goroutine
type Queue struct {
	writePos atomic.Uint64
	_pad1    [56]byte
	readPos  atomic.Uint64
	_pad2    [56]byte

	// slots hold index+1, zero marks an empty slot.
	slots []atomic.Int64
}

// New creates a queue holding at most capacity indexes.
func New(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Queue{slots: make([]atomic.Int64, capacity)}, nil
}

// Push stores index in the next slot. It returns false without blocking when
// the queue is full or index is negative; the caller drops the buffer.
func (q *Queue) Push(index int) bool {
	if index < 0 {
		return false
	}

	w := q.writePos.Load()
	slot := &q.slots[w%uint64(len(q.slots))]
	if slot.Load() != 0 {
		return false
	}

	slot.Store(int64(index) + 1)
	q.writePos.Store(w + 1)
	return true
}

// Pop removes the oldest index. ok is false, without blocking, when the queue
// is empty.
func (q *Queue) Pop() (index int, ok bool) {
	r := q.readPos.Load()
	slot := &q.slots[r%uint64(len(q.slots))]
	v := slot.Load()
	if v == 0 {
		return -1, false
	}

	slot.Store(0)
	q.readPos.Store(r + 1)
	return int(v - 1), true
}

// Size is the number of queued indexes. Concurrent with Push or Pop it is a
// snapshot that may already be stale.
func (q *Queue) Size() int {
	// Load the read cursor first, it never passes the write cursor.
	r := q.readPos.Load()
	w := q.writePos.Load()
	n := int(w - r)
	if n > len(q.slots) {
		n = len(q.slots)
	}
	return n
}

// Cap is the fixed capacity of the queue.
func (q *Queue) Cap() int { return len(q.slots) }
