// Package queue provides the bounded-delay sample queues that connect the
// acquisition, processing and output stages.
package queue

import "sync"

// SampleQueue is a thread-safe FIFO of sample blocks. Blocks pushed by one
// producer are pulled by one or more consumers in push order; the element
// count across all queued blocks is tracked so consumers can smooth their
// wakeups with WaitUntilFilled.
//
// The queue never fails: every method is a pure synchronization primitive.
// Pulling from a queue that no producer will ever push to or end is a
// caller bug and deadlocks.
type SampleQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	blocks [][]T
	qlen   int
	ended  bool
}

// New creates an empty SampleQueue.
func New[T any]() *SampleQueue[T] {
	q := &SampleQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push transfers ownership of block into the queue and wakes waiting
// consumers. Empty blocks are a no-op. Push never blocks; unbounded growth
// is the backpressure signal upstream must watch via QueuedElements.
func (q *SampleQueue[T]) Push(block []T) {
	if len(block) == 0 {
		return
	}
	q.mu.Lock()
	q.blocks = append(q.blocks, block)
	q.qlen += len(block)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PushEnd marks the end of the stream and wakes all waiters. Idempotent.
func (q *SampleQueue[T]) PushEnd() {
	q.mu.Lock()
	q.ended = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// QueuedElements returns the total number of elements across queued blocks.
func (q *SampleQueue[T]) QueuedElements() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.qlen
}

// Pull removes and returns the oldest block, blocking until a block is
// available or the end marker is set. When the queue is drained and ended
// it returns nil, the end-of-stream sentinel.
func (q *SampleQueue[T]) Pull() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.blocks) == 0 && !q.ended {
		q.cond.Wait()
	}
	if len(q.blocks) == 0 {
		return nil
	}
	block := q.blocks[0]
	q.blocks[0] = nil
	q.blocks = q.blocks[1:]
	q.qlen -= len(block)
	return block
}

// PullEndReached reports whether the queue is empty and the end marker set,
// distinguishing "temporarily empty" from "permanently done" without
// blocking.
func (q *SampleQueue[T]) PullEndReached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.qlen == 0 && q.ended
}

// WaitUntilFilled blocks until the queued element count reaches minElements
// or the end marker is set.
func (q *SampleQueue[T]) WaitUntilFilled(minElements int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.qlen < minElements && !q.ended {
		q.cond.Wait()
	}
}

// IsBelowFillLevel reports whether the queued element count is less than
// minElements.
func (q *SampleQueue[T]) IsBelowFillLevel(minElements int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.qlen < minElements
}
