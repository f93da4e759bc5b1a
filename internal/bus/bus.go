// Package bus implements the simulation's event queue and logical clock.
// Entries are ordered by (due_ms, seq): a monotone sequence number breaks
// ties so that entries scheduled for the same instant deliver in insertion
// order. Time is logical milliseconds; nothing here touches the wall clock.
package bus

import "container/heap"

// Payload is the neutral key→value map crossing the scheduler boundary.
type Payload map[string]any

// Entry is a scheduled delivery.
type Entry struct {
	Due     int64
	Seq     int64
	Target  string
	Payload Payload
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Due != h[j].Due {
		return h[i].Due < h[j].Due
	}
	return h[i].Seq < h[j].Seq
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(*Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Bus is the priority queue of pending deliveries behind the logical clock.
type Bus struct {
	clock int64
	seq   int64
	queue entryHeap
}

// New creates an empty bus at clock 0.
func New() *Bus {
	b := &Bus{}
	heap.Init(&b.queue)
	return b
}

// Now returns the current logical clock in milliseconds.
func (b *Bus) Now() int64 { return b.clock }

// Schedule enqueues a delivery dtMs in the future. Negative dtMs schedules
// at the current clock.
func (b *Bus) Schedule(dtMs int64, target string, payload Payload) *Entry {
	if dtMs < 0 {
		dtMs = 0
	}
	e := &Entry{
		Due:     b.clock + dtMs,
		Seq:     b.seq,
		Target:  target,
		Payload: payload,
	}
	b.seq++
	heap.Push(&b.queue, e)
	return e
}

// PeekDue returns the earliest due time, or false when the queue is empty.
func (b *Bus) PeekDue() (int64, bool) {
	if len(b.queue) == 0 {
		return 0, false
	}
	return b.queue[0].Due, true
}

// NextIfDue pops and returns the head entry when its due time has passed.
func (b *Bus) NextIfDue() (*Entry, bool) {
	if len(b.queue) == 0 || b.queue[0].Due > b.clock {
		return nil, false
	}
	return heap.Pop(&b.queue).(*Entry), true
}

// Advance raises the clock by dt. The clock never moves backward.
func (b *Bus) Advance(dt int64) {
	if dt > 0 {
		b.clock += dt
	}
}

// SetClock moves the clock forward to t; earlier values are ignored.
func (b *Bus) SetClock(t int64) {
	if t > b.clock {
		b.clock = t
	}
}

// PendingCount returns the number of pending entries, optionally filtered
// by target ("" counts all).
func (b *Bus) PendingCount(target string) int {
	if target == "" {
		return len(b.queue)
	}
	n := 0
	for _, e := range b.queue {
		if e.Target == target {
			n++
		}
	}
	return n
}

// PendingTargets returns pending counts grouped by target.
func (b *Bus) PendingTargets() map[string]int {
	out := make(map[string]int, 4)
	for _, e := range b.queue {
		out[e.Target]++
	}
	return out
}
