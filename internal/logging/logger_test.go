package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/sparsenet/internal/scheduler"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"info level", "info"},
		{"debug level", "debug"},
		{"trace level", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			if logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "step")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestLevelTrace(t *testing.T) {
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewStepTracer_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	st := NewStepTracer(dir, "info")
	if st != nil {
		t.Error("expected nil StepTracer at info level")
	}

	// A nil tracer is still safe to use.
	st.Trace(scheduler.StepInfo{Kind: scheduler.KindExternal})
	if err := st.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if st.Steps() != 0 {
		t.Errorf("Steps() on nil = %d", st.Steps())
	}

	if _, err := os.Stat(filepath.Join(dir, "trace.jsonl")); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func TestStepTracer_WritesOneLinePerStep(t *testing.T) {
	dir := t.TempDir()
	st := NewStepTracer(dir, "debug")
	if st == nil {
		t.Fatal("expected StepTracer at debug level")
	}

	st.Trace(scheduler.StepInfo{Kind: scheduler.KindSelfCrossing, Time: 0.25, Dt: 0.25, Fired: []int{3, 4}})
	st.Trace(scheduler.StepInfo{
		Kind:      scheduler.KindInternalExternal,
		Tied:      true,
		Time:      0.3,
		Dt:        0.05,
		Delivered: &scheduler.Delivery{Time: 0.3, Spikes: []int{3, 4}},
		External:  []int{0},
	})
	if err := st.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if st.Steps() != 2 {
		t.Errorf("Steps() = %d, want 2", st.Steps())
	}

	data, err := os.ReadFile(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}

	if first["kind"] != "self" || first["fired"] != 2.0 || first["step"] != 1.0 {
		t.Errorf("first = %v", first)
	}
	if _, ok := first["tied"]; ok {
		t.Error("untied step should omit tied")
	}
	if second["kind"] != "internal+external" || second["tied"] != true || second["delivered"] != 2.0 || second["external"] != 1.0 {
		t.Errorf("second = %v", second)
	}
}

func TestStepTracer_TraceAfterClose(t *testing.T) {
	st := NewStepTracer(t.TempDir(), "trace")
	if st == nil {
		t.Fatal("expected StepTracer at trace level")
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// Should be a no-op, not panic.
	st.Trace(scheduler.StepInfo{Kind: scheduler.KindInternal})
	if st.Steps() != 0 {
		t.Errorf("Steps() = %d after Close, want 0", st.Steps())
	}
}

func TestNewStepTracer_MissingDir(t *testing.T) {
	if st := NewStepTracer(filepath.Join(t.TempDir(), "missing"), "debug"); st != nil {
		t.Error("expected nil StepTracer when the directory does not exist")
	}
}
