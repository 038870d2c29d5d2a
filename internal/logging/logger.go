// Package logging provides leveled logging and step tracing for sparsenet.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (run progress and flush events)
//   - A StepTracer for structured JSONL scheduler traces (<run dir>/trace.jsonl)
package logging

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/scheduler"
)

// LevelTrace is a custom slog level below Debug. At this level the progress
// reporter logs every scheduler step to stderr as well.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text lines to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// stepEvent is one line of trace.jsonl.
type stepEvent struct {
	Step      int     `json:"step"`
	Kind      string  `json:"kind"`
	Tied      bool    `json:"tied,omitempty"`
	T         float64 `json:"t"`
	Dt        float64 `json:"dt"`
	Fired     int     `json:"fired"`
	Delivered int     `json:"delivered"`
	External  int     `json:"external"`
}

// StepTracer writes one JSONL line per scheduler step. It implements
// scheduler.Tracer and is safe for concurrent use. A nil StepTracer is safe
// to use; all methods are no-ops on a nil receiver.
type StepTracer struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	steps int
	err   error
}

// NewStepTracer creates a tracer writing to dir/trace.jsonl.
// At "info" level (the default) it returns nil and no file is created.
// It also returns nil if the file cannot be created.
func NewStepTracer(dir string, level string) *StepTracer {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, constants.TraceFile), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return &StepTracer{file: f, w: bufio.NewWriter(f)}
}

// Trace records one step. Safe to call on nil receiver.
func (st *StepTracer) Trace(info scheduler.StepInfo) {
	if st == nil {
		return
	}

	delivered := 0
	if info.Delivered != nil {
		delivered = len(info.Delivered.Spikes)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.w == nil || st.err != nil {
		return
	}
	st.steps++
	data, err := json.Marshal(stepEvent{
		Step:      st.steps,
		Kind:      info.Kind.String(),
		Tied:      info.Tied,
		T:         info.Time,
		Dt:        info.Dt,
		Fired:     len(info.Fired),
		Delivered: delivered,
		External:  len(info.External),
	})
	if err != nil {
		st.err = err
		return
	}
	data = append(data, '\n')
	if _, err := st.w.Write(data); err != nil {
		st.err = err
	}
}

// Steps returns the number of steps traced so far. Safe to call on nil receiver.
func (st *StepTracer) Steps() int {
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.steps
}

// Close flushes and closes the trace file and reports the first write error.
// Safe to call on nil receiver.
func (st *StepTracer) Close() error {
	if st == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.file == nil {
		return st.err
	}
	if err := st.w.Flush(); err != nil && st.err == nil {
		st.err = err
	}
	if err := st.file.Close(); err != nil && st.err == nil {
		st.err = err
	}
	st.file = nil
	st.w = nil
	return st.err
}

var _ scheduler.Tracer = (*StepTracer)(nil)
