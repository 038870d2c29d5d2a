package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/sparsenet/internal/connectivity"
	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/logging"
	"github.com/nvandessel/sparsenet/internal/network"
	"github.com/nvandessel/sparsenet/internal/output"
	"github.com/nvandessel/sparsenet/internal/pathutil"
	"github.com/nvandessel/sparsenet/internal/poisson"
	"github.com/nvandessel/sparsenet/internal/progress"
	"github.com/nvandessel/sparsenet/internal/resources"
	"github.com/nvandessel/sparsenet/internal/scheduler"
	"github.com/nvandessel/sparsenet/internal/store"
)

var (
	// ErrAlreadyRan is returned by a second call to Run. The initial state is
	// consumed by the first run; build a new Simulation to run again.
	ErrAlreadyRan = errors.New("simulation: already ran")

	// ErrInvalidDuration is returned for a duration that is not a positive finite number.
	ErrInvalidDuration = errors.New("simulation: duration must be a positive finite number")
)

// PCG stream identifiers keep the connectivity and dynamics generators
// independent even when both are seeded with the same value.
const (
	connectivityStream = 0x636f6e6e // "conn"
	dynamicsStream     = 0x64796e61 // "dyna"
)

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 1024

// HostChecker reports non-fatal problems with the host before a run.
type HostChecker interface {
	Check(ctx context.Context, dir string, budget, flushBytes int64) []resources.Warning
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds both the connectivity and the dynamics generator.
func WithSeed(seed int64) Option {
	return func(s *Simulation) {
		s.connSeed = seed
		s.dynSeed = seed
	}
}

// WithConnectivitySeed seeds the generator that draws the weight matrix.
func WithConnectivitySeed(seed int64) Option {
	return func(s *Simulation) { s.connSeed = seed }
}

// WithDynamicsSeed seeds the generator for initial phases and Poisson arrivals.
func WithDynamicsSeed(seed int64) Option {
	return func(s *Simulation) { s.dynSeed = seed }
}

// WithMemoryBudget bounds the bytes held by the output tables between flushes.
func WithMemoryBudget(bytes int64) Option {
	return func(s *Simulation) { s.budget = bytes }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithLogLevel sets the level that decides whether trace.jsonl is written.
func WithLogLevel(level string) Option {
	return func(s *Simulation) { s.logLevel = level }
}

// WithTracer adds a tracer that sees every scheduler step.
func WithTracer(t scheduler.Tracer) Option {
	return func(s *Simulation) { s.extra = append(s.extra, t) }
}

// WithCatalog registers finished runs in the catalog kept in root.
func WithCatalog(root string) Option {
	return func(s *Simulation) { s.catalogRoot = root }
}

// WithHostChecker replaces the gopsutil-backed host check.
func WithHostChecker(c HostChecker) Option {
	return func(s *Simulation) { s.checker = c }
}

// WithProgressInterval sets the minimum wall-clock time between progress lines.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Simulation) { s.progressEvery = d }
}

// Simulation is a network with its weight matrix and initial state, ready to run once.
type Simulation struct {
	net     *network.Network
	weights *connectivity.Matrix

	source   *poisson.Source
	phases   []float64
	arrivals []float64

	connSeed      int64
	dynSeed       int64
	budget        int64
	logger        *slog.Logger
	logLevel      string
	catalogRoot   string
	checker       HostChecker
	progressEvery time.Duration
	extra         []scheduler.Tracer

	ran bool
}

// Summary describes a finished run.
type Summary struct {
	RunID     string              `json:"run_id"`
	Dir       string              `json:"dir"`
	Duration  float64             `json:"duration"`
	FinalTime float64             `json:"final_time"`
	Steps     int                 `json:"steps"`
	Spikes    int                 `json:"spikes"`
	Delivered int                 `json:"delivered"`
	Artifacts []output.Artifact   `json:"artifacts"`
	Warnings  []resources.Warning `json:"warnings,omitempty"`
	Elapsed   time.Duration       `json:"elapsed"`
}

// New validates p, draws the weight matrix, initial phases uniform in [0, 1)
// and the first arrival of every external neuron.
func New(p network.Params, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		connSeed: constants.DefaultSeed,
		dynSeed:  constants.DefaultSeed,
		budget:   constants.DefaultMemoryBudget,
		logger:   slog.New(slog.DiscardHandler),
		logLevel: "info",
		checker:  resources.NewChecker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.budget <= 0 {
		return nil, fmt.Errorf("memory budget %d: %w", s.budget, output.ErrBudget)
	}

	net, err := network.New(p)
	if err != nil {
		return nil, err
	}
	s.net = net

	connRng := rand.New(rand.NewPCG(uint64(s.connSeed), connectivityStream))
	if s.weights, err = connectivity.Build(net, connRng); err != nil {
		return nil, fmt.Errorf("building connectivity: %w", err)
	}

	dynRng := rand.New(rand.NewPCG(uint64(s.dynSeed), dynamicsStream))
	s.phases = make([]float64, net.N())
	for i := range s.phases {
		s.phases[i] = dynRng.Float64()
	}
	s.source = poisson.NewSource(dynRng)
	if s.arrivals, err = s.source.Initial(net.ExtRate); err != nil {
		return nil, fmt.Errorf("drawing external arrivals: %w", err)
	}

	s.logger.Debug("network built",
		"neurons", net.N(),
		"external", net.NExt(),
		"synapses", s.weights.NNZ(),
		"connectivity_seed", s.connSeed,
		"dynamics_seed", s.dynSeed,
	)
	return s, nil
}

// Network returns the network being simulated.
func (s *Simulation) Network() *network.Network { return s.net }

// Weights returns the weight matrix.
func (s *Simulation) Weights() *connectivity.Matrix { return s.weights }

// Run simulates until the clock reaches duration and writes the run directory
// dir, creating it if needed. Any I/O failure aborts the run.
func (s *Simulation) Run(ctx context.Context, duration float64, dir string) (*Summary, error) {
	if s.ran {
		return nil, ErrAlreadyRan
	}
	if !(duration > 0) || math.IsInf(duration, 1) {
		return nil, fmt.Errorf("duration=%g: %w", duration, ErrInvalidDuration)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.ran = true
	started := time.Now()

	if err := pathutil.EnsureWritableDir(dir); err != nil {
		return nil, err
	}

	n := s.net.N()
	capacity := output.Capacity(s.budget, n)
	summary := &Summary{
		RunID:    uuid.NewString(),
		Dir:      dir,
		Duration: duration,
	}

	summary.Warnings = s.checker.Check(ctx, dir, s.budget, output.FlushBytes(capacity, n))
	for _, w := range summary.Warnings {
		s.logger.Warn("host check", "code", w.Code, "detail", w.Message)
	}

	params := &Parameters{
		Version:          ParametersVersion,
		RunID:            summary.RunID,
		CreatedAt:        started.UTC(),
		Network:          s.net.Params(),
		Duration:         duration,
		ConnectivitySeed: s.connSeed,
		DynamicsSeed:     s.dynSeed,
		MemoryBudget:     s.budget,
		Capacity:         capacity,
	}
	if err := WriteParameters(dir, params); err != nil {
		return nil, err
	}

	buf, err := output.NewBuffer(n, s.budget, output.NewArrowSink(dir), output.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	tracer := logging.NewStepTracer(dir, s.logLevel)
	reporter := progress.New(s.logger, duration, s.progressEvery)

	sched, err := scheduler.New(s.net, s.weights, s.source, s.phases, s.arrivals,
		scheduler.WithRecorder(buf),
		scheduler.WithTracer(append(tracers{reporter, tracer}, s.extra...)),
	)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	s.logger.Info("run started",
		"run_id", summary.RunID,
		"dir", pathutil.RedactPath(dir),
		"duration", duration,
		"capacity", capacity,
	)

	if err := s.loop(ctx, sched, duration, &summary.Steps); err != nil {
		tracer.Close()
		return nil, err
	}
	if err := buf.Close(); err != nil {
		tracer.Close()
		return nil, fmt.Errorf("final flush: %w", err)
	}
	if err := tracer.Close(); err != nil {
		return nil, fmt.Errorf("closing step trace: %w", err)
	}

	_, summary.Spikes = reporter.Counts()
	summary.Delivered = reporter.Delivered()
	summary.FinalTime = sched.Time()
	summary.Artifacts = buf.Artifacts()
	summary.Elapsed = time.Since(started)

	manifest := &output.Manifest{
		Version:          output.ManifestVersion,
		RunID:            summary.RunID,
		CreatedAt:        params.CreatedAt,
		Neurons:          n,
		Duration:         duration,
		FinalTime:        summary.FinalTime,
		Steps:            summary.Steps,
		Spikes:           summary.Spikes,
		Delivered:        summary.Delivered,
		ConnectivitySeed: s.connSeed,
		DynamicsSeed:     s.dynSeed,
		Artifacts:        summary.Artifacts,
	}
	if err := output.WriteManifest(dir, manifest); err != nil {
		return nil, err
	}

	if s.catalogRoot != "" {
		if err := s.register(ctx, summary, params); err != nil {
			return nil, err
		}
	}

	s.logger.Info("run finished",
		"run_id", summary.RunID,
		"steps", summary.Steps,
		"spikes", summary.Spikes,
		"final_time", summary.FinalTime,
		"artifacts", len(summary.Artifacts),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

func (s *Simulation) loop(ctx context.Context, sched *scheduler.Scheduler, duration float64, steps *int) error {
	for sched.Time() < duration {
		if *steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run interrupted at t=%g: %w", sched.Time(), err)
			}
		}
		if _, err := sched.Step(); err != nil {
			return fmt.Errorf("step %d: %w", *steps, err)
		}
		*steps++
	}
	return nil
}

func (s *Simulation) register(ctx context.Context, summary *Summary, params *Parameters) error {
	hash, err := ParamsHash(params.Network)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(summary.Dir)
	if err != nil {
		return fmt.Errorf("resolving run directory: %w", err)
	}

	cat, err := store.Open(ctx, s.catalogRoot)
	if err != nil {
		return fmt.Errorf("opening run catalog: %w", err)
	}
	defer cat.Close()

	artifacts := make([]store.Artifact, 0, len(summary.Artifacts))
	for _, a := range summary.Artifacts {
		artifacts = append(artifacts, store.Artifact{
			Name:     a.Name,
			Kind:     a.Kind.String(),
			Seq:      a.Seq,
			Rows:     a.Rows,
			Bytes:    a.Bytes,
			Checksum: a.Checksum,
		})
	}

	run := store.Run{
		ID:               summary.RunID,
		Dir:              absDir,
		CreatedAt:        params.CreatedAt,
		Neurons:          s.net.N(),
		Populations:      params.Network.Sizes,
		Duration:         summary.Duration,
		FinalTime:        summary.FinalTime,
		Steps:            summary.Steps,
		Spikes:           summary.Spikes,
		ConnectivitySeed: s.connSeed,
		DynamicsSeed:     s.dynSeed,
		ParamsHash:       hash,
	}
	if err := cat.AddRun(ctx, run, artifacts); err != nil {
		return fmt.Errorf("registering run: %w", err)
	}
	s.logger.Debug("run registered", "catalog", pathutil.RedactPath(cat.Path()))
	return nil
}

// tracers fans a step out to several tracers.
type tracers []scheduler.Tracer

func (ts tracers) Trace(info scheduler.StepInfo) {
	for _, t := range ts {
		t.Trace(info)
	}
}
