// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pool

import (
	"context"
	"sync"
	"time"

	"github.com/enriquebris/goconcurrentqueue"
)

// unit is a single queue entry. A unit with stop set tells exactly
// one worker to exit its loop.
type unit struct {
	ctx  context.Context
	job  Job
	stop bool
}

// queue is an unbounded FIFO shared by every worker. push never
// blocks on consumers.
//
// mu serializes push and close so no job can land behind the stop units.
type queue struct {
	mu     sync.Mutex
	closed bool
	fifo   *goconcurrentqueue.FIFO
}

func newQueue() *queue {
	return &queue{
		fifo: goconcurrentqueue.NewFIFO(),
	}
}

// push appends u unless the queue has been closed.
func (q *queue) push(u unit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	return q.fifo.Enqueue(u) == nil
}

// close appends n stop units behind every queued job and rejects
// any further pushes. It reports false if the queue was already closed.
func (q *queue) close(n int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	for range n {
		// the fifo is never locked so enqueue can't fail
		_ = q.fifo.Enqueue(unit{stop: true})
	}
	return true
}

// popRetryInterval is how long pop waits before asking the fifo
// again when it refused to register another waiter.
const popRetryInterval = time.Millisecond

// pop blocks until a unit is available.
func (q *queue) pop() unit {
	for {
		v, err := q.fifo.DequeueOrWaitForNextElement()
		if err == nil {
			return v.(unit)
		}
		time.Sleep(popRetryInterval)
	}
}

func (q *queue) len() int {
	return q.fifo.GetLen()
}
