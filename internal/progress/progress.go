// Package progress reports how far a run has come, throttled on wall-clock time.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvandessel/sparsenet/internal/logging"
	"github.com/nvandessel/sparsenet/internal/scheduler"
)

// DefaultInterval is the minimum wall-clock time between progress lines.
const DefaultInterval = 2 * time.Second

// Reporter counts steps and spikes and logs a progress line at most once
// per interval. It implements scheduler.Tracer and is safe for concurrent use.
type Reporter struct {
	mu      sync.Mutex
	logger  *slog.Logger
	limiter *rate.Limiter
	tEnd    float64
	now     func() time.Time
	start   time.Time

	steps  int
	spikes    int
	delivered int
	last   float64
}

// New returns a Reporter for a run ending at simulated time tEnd.
func New(logger *slog.Logger, tEnd float64, interval time.Duration) *Reporter {
	return newReporter(logger, tEnd, interval, time.Now)
}

func newReporter(logger *slog.Logger, tEnd float64, interval time.Duration, now func() time.Time) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := now()
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	// Spend the initial token so the first line appears one interval in.
	limiter.AllowN(start, 1)
	return &Reporter{
		logger:  logger,
		limiter: limiter,
		tEnd:    tEnd,
		now:     now,
		start:   start,
	}
}

// Trace implements scheduler.Tracer.
func (r *Reporter) Trace(info scheduler.StepInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.steps++
	r.spikes += len(info.Fired)
	if info.Delivered != nil {
		r.delivered += len(info.Delivered.Spikes)
	}
	r.last = info.Time

	if r.logger.Enabled(context.Background(), logging.LevelTrace) {
		r.logger.Log(context.Background(), logging.LevelTrace, "step",
			"step", r.steps,
			"kind", info.Kind.String(),
			"t", info.Time,
			"dt", info.Dt,
			"fired", len(info.Fired),
			"external", len(info.External),
		)
	}

	now := r.now()
	if !r.limiter.AllowN(now, 1) {
		return
	}
	r.logger.Info("progress",
		"t", r.last,
		"percent", r.percent(),
		"steps", r.steps,
		"spikes", r.spikes,
		"elapsed", now.Sub(r.start).Round(time.Millisecond),
	)
}

// Delivered returns the number of spikes delivered so far.
func (r *Reporter) Delivered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered
}

// Counts returns the number of steps and spikes seen so far.
func (r *Reporter) Counts() (steps, spikes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps, r.spikes
}

func (r *Reporter) percent() float64 {
	if r.tEnd <= 0 {
		return 100
	}
	return min(100, 100*r.last/r.tEnd)
}

var _ scheduler.Tracer = (*Reporter)(nil)
