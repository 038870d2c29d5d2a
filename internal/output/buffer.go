package output

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/scheduler"
)

var (
	// ErrClosed is returned when recording into a closed Buffer.
	ErrClosed = errors.New("output: buffer is closed")

	// ErrWidth is returned when a record does not have one phase per neuron.
	ErrWidth = errors.New("output: record width does not match buffer")

	// ErrBudget is returned for a non-positive memory budget.
	ErrBudget = errors.New("output: memory budget must be positive")
)

// initialRows bounds the up-front allocation; tables grow on demand up to capacity.
const initialRows = 4096

// Capacity converts a memory budget in bytes into a row count for a network of
// n neurons: budget / (n+1) / BytesPerValue, at least 1.
func Capacity(budget int64, n int) int {
	rows := budget / int64(n+1) / constants.BytesPerValue
	if rows < 1 {
		return 1
	}
	return int(rows)
}

// FlushBytes estimates the on-disk size of one full artifact pair.
func FlushBytes(capacity, n int) int64 {
	row := int64(n+1) * constants.BytesPerValue
	spikeRow := int64(constants.BytesPerValue + n)
	return int64(capacity) * (row + spikeRow)
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLogger sets the logger used to report flushes.
func WithLogger(l *slog.Logger) Option {
	return func(b *Buffer) { b.logger = l }
}

// Buffer records the phase and spike tables of a run. When either table
// reaches capacity both are flushed to the sink under the same sequence
// number and recording continues into empty tables. Buffer implements
// scheduler.Recorder.
type Buffer struct {
	width    int
	capacity int
	sink     Sink
	logger   *slog.Logger

	phases PhaseTable
	spikes SpikeTable

	seq       int
	artifacts []Artifact
	closed    bool
}

// NewBuffer returns a Buffer for n neurons whose tables together stay within
// budget bytes.
func NewBuffer(n int, budget int64, sink Sink, opts ...Option) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer for %d neurons: %w", n, ErrWidth)
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget=%d: %w", budget, ErrBudget)
	}
	if sink == nil {
		return nil, errors.New("output: nil sink")
	}

	capacity := Capacity(budget, n)
	rows := min(capacity, initialRows)
	b := &Buffer{
		width:    n,
		capacity: capacity,
		sink:     sink,
		logger:   slog.New(slog.DiscardHandler),
		phases: PhaseTable{
			Width:  n,
			Times:  make([]float64, 0, rows),
			Values: make([]float64, 0, rows*n),
		},
		spikes: SpikeTable{
			Width: n,
			Times: make([]float64, 0, rows),
			Fired: make([][]int, 0, rows),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Capacity returns the number of rows each table holds before a flush.
func (b *Buffer) Capacity() int { return b.capacity }

// Artifacts returns the artifacts written so far, in flush order.
func (b *Buffer) Artifacts() []Artifact {
	return append([]Artifact(nil), b.artifacts...)
}

// Record appends one step. A delivered spike vector adds a spike row stamped
// with its arrival time.
func (b *Buffer) Record(r scheduler.Record) error {
	if b.closed {
		return ErrClosed
	}
	if len(r.Phases) != b.width {
		return fmt.Errorf("%d phases for %d neurons: %w", len(r.Phases), b.width, ErrWidth)
	}

	b.phases.append(r.Time, r.Phases)
	if r.Delivered != nil {
		b.spikes.append(r.Delivered.Time, r.Delivered.Spikes)
	}

	if b.phases.Rows() >= b.capacity || b.spikes.Rows() >= b.capacity {
		return b.flush()
	}
	return nil
}

// Close flushes whatever remains, even an empty pair, as the final artifacts.
// Closing twice is a no-op.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.flush()
}

func (b *Buffer) flush() error {
	pa, err := b.sink.WritePhases(b.seq, &b.phases)
	if err != nil {
		return fmt.Errorf("flush %d: %w", b.seq, err)
	}
	sa, err := b.sink.WriteSpikes(b.seq, &b.spikes)
	if err != nil {
		return fmt.Errorf("flush %d: %w", b.seq, err)
	}
	b.artifacts = append(b.artifacts, pa, sa)

	b.logger.Debug("flushed artifacts",
		"seq", b.seq,
		"phase_rows", pa.Rows,
		"spike_rows", sa.Rows,
	)

	b.seq++
	b.phases.reset()
	b.spikes.reset()
	return nil
}
