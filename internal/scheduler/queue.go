package scheduler

import (
	"errors"
	"fmt"
)

// ErrQueueOrder is returned when a delivery would arrive before the one queued ahead of it.
var ErrQueueOrder = errors.New("scheduler: delivery times must be non-decreasing")

// Delivery is a set of internal spikes in flight: the neurons in Spikes fired
// together and reach their targets at Time.
type Delivery struct {
	Time   float64
	Spikes []int
}

// deliveryQueue is a FIFO of deliveries. The transmission delay is constant and
// deliveries are pushed in emission order, so the head is always the earliest.
type deliveryQueue struct {
	items []Delivery
	head  int
}

func (q *deliveryQueue) Len() int {
	return len(q.items) - q.head
}

// Push appends d, rejecting it if it would break the arrival order.
func (q *deliveryQueue) Push(d Delivery) error {
	if n := len(q.items); n > q.head && d.Time < q.items[n-1].Time {
		return fmt.Errorf("push at %g after %g: %w", d.Time, q.items[n-1].Time, ErrQueueOrder)
	}
	q.items = append(q.items, d)
	return nil
}

// Peek returns the earliest delivery. It must not be called on an empty queue.
func (q *deliveryQueue) Peek() Delivery {
	return q.items[q.head]
}

// Pop removes and returns the earliest delivery.
func (q *deliveryQueue) Pop() Delivery {
	d := q.items[q.head]
	q.items[q.head] = Delivery{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return d
}

// Times returns the arrival times in queue order.
func (q *deliveryQueue) Times() []float64 {
	out := make([]float64, 0, q.Len())
	for _, d := range q.items[q.head:] {
		out = append(out, d.Time)
	}
	return out
}
