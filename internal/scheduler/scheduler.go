// Package scheduler advances a network of phase-represented LIF neurons from
// event to event. Each step picks the earliest of three candidate events:
// an internal neuron reaching threshold, a queued internal delivery arriving,
// or an external Poisson neuron firing.
package scheduler

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/sparsenet/internal/connectivity"
	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/network"
	"github.com/nvandessel/sparsenet/internal/phase"
	"github.com/nvandessel/sparsenet/internal/poisson"
	"github.com/nvandessel/sparsenet/internal/vecmath"
)

var (
	// ErrNilDependency is returned when a required collaborator is missing.
	ErrNilDependency = errors.New("scheduler: missing dependency")

	// ErrShape is returned when the state vectors or weights do not match the network.
	ErrShape = errors.New("scheduler: state does not match network")
)

// Kind classifies the event a step processed.
type Kind uint8

const (
	// KindSelfCrossing: internal neurons reached threshold before any delivery.
	KindSelfCrossing Kind = iota + 1
	// KindInternal: a queued internal delivery arrived.
	KindInternal
	// KindExternal: one or more external neurons fired.
	KindExternal
	// KindInternalExternal: an internal delivery and external spikes coincided.
	KindInternalExternal
)

func (k Kind) String() string {
	switch k {
	case KindSelfCrossing:
		return "self"
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	case KindInternalExternal:
		return "internal+external"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// StepInfo describes what one call to Step did.
type StepInfo struct {
	Kind Kind

	// Tied is set when a threshold crossing coincided with a delivery event.
	Tied bool

	// Time is the clock after the step; Dt is the amount every phase advanced.
	Time float64
	Dt   float64

	// Fired lists the internal neurons that crossed threshold and were queued.
	Fired []int

	// Delivered is the internal delivery consumed by this step, if any.
	Delivered *Delivery

	// External lists the external neurons (0-based within the external block)
	// that fired in this step.
	External []int
}

// Record is the state handed to a Recorder after every step. Phases aliases
// the scheduler's state and is only valid during the call. A delivery is
// never modified once dequeued, so Delivered may be retained.
type Record struct {
	Time      float64
	Phases    []float64
	Delivered *Delivery
}

// Recorder receives the state after each step.
type Recorder interface {
	Record(Record) error
}

// Tracer observes step decisions. Implementations must not retain Fired or External.
type Tracer interface {
	Trace(StepInfo)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder attaches r; Step fails if r returns an error.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithTracer attaches a step tracer.
func WithTracer(t Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// Scheduler owns the dynamic state of a simulation: phases, the clock, the
// next arrival of each external neuron and the queue of in-flight deliveries.
// It is not safe for concurrent use.
type Scheduler struct {
	net     *network.Network
	weights *connectivity.Matrix
	source  *poisson.Source

	phases   []float64
	arrivals []float64
	queue    deliveryQueue
	t        float64

	eps  []float64
	cols []int

	recorder Recorder
	tracer   Tracer
}

// New returns a Scheduler at t=0 with the given initial phases and first
// external arrival times. The scheduler takes ownership of both slices.
func New(
	net *network.Network,
	weights *connectivity.Matrix,
	source *poisson.Source,
	phases, arrivals []float64,
	opts ...Option,
) (*Scheduler, error) {
	if net == nil || weights == nil || source == nil {
		return nil, ErrNilDependency
	}
	n, next := net.N(), net.NExt()
	if rows, cols := weights.Dims(); rows != n || cols != n+next {
		return nil, fmt.Errorf("weights %dx%d, want %dx%d: %w", rows, cols, n, n+next, ErrShape)
	}
	if len(phases) != n {
		return nil, fmt.Errorf("%d phases for %d neurons: %w", len(phases), n, ErrShape)
	}
	if len(arrivals) != next {
		return nil, fmt.Errorf("%d arrival times for %d external neurons: %w", len(arrivals), next, ErrShape)
	}

	s := &Scheduler{
		net:      net,
		weights:  weights,
		source:   source,
		phases:   phases,
		arrivals: arrivals,
		eps:      make([]float64, n),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Time returns the simulation clock.
func (s *Scheduler) Time() float64 { return s.t }

// Phases returns the live phase vector. Callers must not modify it.
func (s *Scheduler) Phases() []float64 { return s.phases }

// Arrivals returns the live external arrival times. Callers must not modify it.
func (s *Scheduler) Arrivals() []float64 { return s.arrivals }

// QueueTimes returns the arrival times of the in-flight deliveries in queue order.
func (s *Scheduler) QueueTimes() []float64 { return s.queue.Times() }

// Run steps until the clock reaches tEnd and returns the number of steps taken.
func (s *Scheduler) Run(tEnd float64) (int, error) {
	steps := 0
	for s.t < tEnd {
		if _, err := s.Step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

// Step processes the next event.
func (s *Scheduler) Step() (StepInfo, error) {
	inf := math.Inf(1)

	maxPhase := vecmath.Max(s.phases)
	dtSelf := constants.Threshold - maxPhase

	tInt, dtInt := inf, inf
	if s.queue.Len() > 0 {
		tInt = s.queue.Peek().Time
		dtInt = tInt - s.t
	}
	tExt, dtExt := inf, inf
	if len(s.arrivals) > 0 {
		tExt = vecmath.Min(s.arrivals)
		dtExt = tExt - s.t
	}

	var (
		info StepInfo
		err  error
	)
	if dtDeliver := min(dtInt, dtExt); dtSelf < dtDeliver {
		info, err = s.selfCrossing(dtSelf, min(tInt, tExt))
	} else {
		info, err = s.deliver(dtSelf == dtDeliver, maxPhase, dtDeliver, dtInt == dtDeliver, tInt, dtExt == dtDeliver, tExt)
	}
	if err != nil {
		return info, err
	}

	if s.recorder != nil {
		if err := s.recorder.Record(Record{Time: s.t, Phases: s.phases, Delivered: info.Delivered}); err != nil {
			return info, fmt.Errorf("record step at t=%g: %w", s.t, err)
		}
	}
	if s.tracer != nil {
		s.tracer.Trace(info)
	}
	return info, nil
}

// selfCrossing handles a step in which only threshold crossings are due.
// No potential jump is applied. The clock never passes next, the earliest
// pending delivery.
func (s *Scheduler) selfCrossing(dt, next float64) (StepInfo, error) {
	dt = max(dt, 0)
	fired, err := s.advanceAndFire(dt)
	if err != nil {
		return StepInfo{}, err
	}
	s.t = min(s.t+dt, next)
	return StepInfo{Kind: KindSelfCrossing, Time: s.t, Dt: dt, Fired: fired}, nil
}

// deliver handles a step in which an internal delivery, external spikes, or
// both are due. When tied is set the neurons at maximum phase reach threshold
// in the same step; they fire before the jump and are held at reset if the
// jump pushes them above threshold again.
func (s *Scheduler) deliver(
	tied bool, maxPhase, dt float64,
	internalDue bool, tInt float64,
	externalDue bool, tExt float64,
) (StepInfo, error) {
	dt = max(dt, 0)
	info := StepInfo{Tied: tied, Dt: dt}

	var atThreshold []int
	if tied {
		atThreshold = vecmath.IndicesEqual(s.phases, maxPhase)
		fired, err := s.advanceAndFire(dt)
		if err != nil {
			return info, err
		}
		info.Fired = fired
	} else {
		vecmath.AddConst(dt, s.phases)
	}

	// The clock lands on the event time itself so that the next comparison
	// against queued and external times is exact.
	eventTime := math.Inf(1)
	if internalDue {
		eventTime = tInt
	}
	if externalDue {
		eventTime = min(eventTime, tExt)
	}
	now := max(s.t, eventTime)

	s.cols = s.cols[:0]
	if internalDue {
		d := s.queue.Pop()
		info.Delivered = &d
		s.cols = append(s.cols, d.Spikes...)
	}
	if externalDue {
		info.External = vecmath.IndicesEqual(s.arrivals, tExt)
		n := s.net.N()
		for _, j := range info.External {
			next, err := s.source.Next(now, s.net.ExtRate[j])
			if err != nil {
				return info, fmt.Errorf("redraw external neuron %d: %w", j, err)
			}
			s.arrivals[j] = next
			s.cols = append(s.cols, n+j)
		}
	}

	switch {
	case internalDue && externalDue:
		info.Kind = KindInternalExternal
	case internalDue:
		info.Kind = KindInternal
	default:
		info.Kind = KindExternal
	}

	if err := s.weights.MulIndicator(s.eps, s.cols); err != nil {
		return info, fmt.Errorf("potential jumps: %w", err)
	}
	phase.Apply(s.phases, s.net.Drive, s.net.Leak, s.eps)

	for _, i := range atThreshold {
		if s.phases[i] > constants.Threshold {
			s.phases[i] = 0
		}
	}

	s.t = now
	info.Time = s.t
	return info, nil
}

// advanceAndFire moves every phase forward by dt, resets the neurons at or
// above threshold and queues their spikes for delivery after the delay.
func (s *Scheduler) advanceAndFire(dt float64) ([]int, error) {
	vecmath.AddConst(dt, s.phases)
	fired := vecmath.IndicesAtLeast(s.phases, constants.Threshold)
	if len(fired) == 0 {
		return nil, nil
	}
	for _, i := range fired {
		s.phases[i] = 0
	}
	d := Delivery{Time: s.t + dt + s.net.Tau(), Spikes: fired}
	if err := s.queue.Push(d); err != nil {
		return nil, err
	}
	return fired, nil
}

