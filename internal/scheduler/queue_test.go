package scheduler

import (
	"errors"
	"testing"
)

func TestDeliveryQueue_FIFO(t *testing.T) {
	var q deliveryQueue
	for i := 0; i < 500; i++ {
		if err := q.Push(Delivery{Time: float64(i), Spikes: []int{i}}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
		// Interleave pops so the compaction path runs while items remain.
		if i%3 == 2 {
			q.Pop()
		}
	}

	want := 500 - 500/3
	if q.Len() != want {
		t.Fatalf("Len() = %d, want %d", q.Len(), want)
	}

	prev := -1.0
	for q.Len() > 0 {
		head := q.Peek().Time
		d := q.Pop()
		if d.Time != head {
			t.Fatalf("Pop() = %g, Peek() said %g", d.Time, head)
		}
		if d.Time <= prev {
			t.Fatalf("out of order: %g after %g", d.Time, prev)
		}
		if d.Spikes[0] != int(d.Time) {
			t.Fatalf("payload %v does not match time %g", d.Spikes, d.Time)
		}
		prev = d.Time
	}
}

func TestDeliveryQueue_RejectsEarlierTime(t *testing.T) {
	var q deliveryQueue
	if err := q.Push(Delivery{Time: 2}); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(Delivery{Time: 2}); err != nil {
		t.Fatalf("equal times must be accepted: %v", err)
	}
	if err := q.Push(Delivery{Time: 1}); !errors.Is(err, ErrQueueOrder) {
		t.Fatalf("Push(earlier) error = %v, want ErrQueueOrder", err)
	}
}

func TestDeliveryQueue_Times(t *testing.T) {
	var q deliveryQueue
	if got := q.Times(); len(got) != 0 {
		t.Fatalf("empty queue Times() = %v", got)
	}
	_ = q.Push(Delivery{Time: 1})
	_ = q.Push(Delivery{Time: 1.5})
	_ = q.Push(Delivery{Time: 3})
	q.Pop()

	got := q.Times()
	if len(got) != 2 || got[0] != 1.5 || got[1] != 3 {
		t.Fatalf("Times() = %v, want [1.5 3]", got)
	}
}
