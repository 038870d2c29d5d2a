// Package analysis reads a run directory back and summarizes its activity:
// per-population firing rates and the regularity of each neuron's spike train.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/network"
	"github.com/nvandessel/sparsenet/internal/output"
	"github.com/nvandessel/sparsenet/internal/simulation"
)

// ErrMismatch is returned when the artifacts disagree with the parameter record.
var ErrMismatch = errors.New("analysis: artifacts do not match parameters")

// Run is a run directory loaded into memory.
type Run struct {
	Params *simulation.Parameters
	Layout network.Layout

	// Phases and Spikes concatenate every artifact in sequence order.
	Phases *output.PhaseTable
	Spikes *output.SpikeTable

	// Cycles is the number of flush cycles found.
	Cycles int
}

// Load reads the parameter record and concatenates the phase and spike
// artifacts of dir in numeric order.
func Load(dir string) (*Run, error) {
	params, err := simulation.ReadParameters(dir)
	if err != nil {
		return nil, err
	}
	layout, err := network.NewLayout(params.Network.Sizes)
	if err != nil {
		return nil, err
	}
	n := layout.Total()

	phaseFiles, err := output.List(dir, constants.ArtifactPhases)
	if err != nil {
		return nil, err
	}
	spikeFiles, err := output.List(dir, constants.ArtifactSpikes)
	if err != nil {
		return nil, err
	}
	if len(phaseFiles) != len(spikeFiles) {
		return nil, fmt.Errorf("%d phase and %d spike artifacts: %w", len(phaseFiles), len(spikeFiles), ErrMismatch)
	}

	run := &Run{
		Params: params,
		Layout: layout,
		Phases: &output.PhaseTable{Width: n},
		Spikes: &output.SpikeTable{Width: n},
		Cycles: len(phaseFiles),
	}
	for i := range phaseFiles {
		if phaseFiles[i].Seq != i || spikeFiles[i].Seq != i {
			return nil, fmt.Errorf("flush cycle %d missing: %w", i, ErrMismatch)
		}

		pt, err := output.ReadPhases(phaseFiles[i].Path)
		if err != nil {
			return nil, err
		}
		if pt.Width != n {
			return nil, fmt.Errorf("%s has %d neurons, want %d: %w", phaseFiles[i].Path, pt.Width, n, ErrMismatch)
		}
		run.Phases.Times = append(run.Phases.Times, pt.Times...)
		run.Phases.Values = append(run.Phases.Values, pt.Values...)

		st, err := output.ReadSpikes(spikeFiles[i].Path)
		if err != nil {
			return nil, err
		}
		if st.Width != n {
			return nil, fmt.Errorf("%s has %d neurons, want %d: %w", spikeFiles[i].Path, st.Width, n, ErrMismatch)
		}
		run.Spikes.Times = append(run.Spikes.Times, st.Times...)
		run.Spikes.Fired = append(run.Spikes.Fired, st.Fired...)
	}
	return run, nil
}

// FinalTime returns the clock after the last recorded step, or 0 for an empty run.
func (r *Run) FinalTime() float64 {
	if r.Phases.Rows() == 0 {
		return 0
	}
	return r.Phases.Times[r.Phases.Rows()-1]
}

// SpikeTrains returns the emission times of every neuron. Spike rows carry
// the arrival time of a delivery, which is the emission time plus tau.
func (r *Run) SpikeTrains() [][]float64 {
	tau := r.Params.Network.Tau
	trains := make([][]float64, r.Phases.Width)
	for row, fired := range r.Spikes.Fired {
		emitted := r.Spikes.Times[row] - tau
		for _, i := range fired {
			trains[i] = append(trains[i], emitted)
		}
	}
	return trains
}

// PopulationStats summarizes one population.
type PopulationStats struct {
	Population int     `json:"population"`
	Size       int     `json:"size"`
	Spikes     int     `json:"spikes"`
	Rate       float64 `json:"rate"`

	// MeanCV averages the ISI coefficient of variation over the neurons with
	// at least two intervals; CVNeurons counts them. MeanCV is NaN when none qualify.
	MeanCV    float64 `json:"mean_cv"`
	CVNeurons int     `json:"cv_neurons"`
}

// Report summarizes a run.
type Report struct {
	RunID       string            `json:"run_id"`
	Neurons     int               `json:"neurons"`
	Steps       int               `json:"steps"`
	Cycles      int               `json:"cycles"`
	FinalTime   float64           `json:"final_time"`
	Spikes      int               `json:"spikes"`
	MinPhase    float64           `json:"min_phase"`
	MaxPhase    float64           `json:"max_phase"`
	Populations []PopulationStats `json:"populations"`
}

// Analyze computes the report for a loaded run. Rates are spikes per neuron
// per unit of simulated time.
func Analyze(r *Run) *Report {
	rep := &Report{
		RunID:     r.Params.RunID,
		Neurons:   r.Phases.Width,
		Steps:     r.Phases.Rows(),
		Cycles:    r.Cycles,
		FinalTime: r.FinalTime(),
		Spikes:    r.Spikes.Count(),
		MinPhase:  math.NaN(),
		MaxPhase:  math.NaN(),
	}
	if len(r.Phases.Values) > 0 {
		rep.MinPhase = floats.Min(r.Phases.Values)
		rep.MaxPhase = floats.Max(r.Phases.Values)
	}

	trains := r.SpikeTrains()
	for p, b := range r.Layout.Blocks() {
		ps := PopulationStats{Population: p, Size: b.Len, MeanCV: math.NaN()}

		var cvs []float64
		for i := b.Start; i < b.End(); i++ {
			ps.Spikes += len(trains[i])
			if cv := CV(trains[i]); !math.IsNaN(cv) {
				cvs = append(cvs, cv)
			}
		}
		if rep.FinalTime > 0 {
			ps.Rate = float64(ps.Spikes) / (float64(b.Len) * rep.FinalTime)
		}
		if len(cvs) > 0 {
			ps.MeanCV = stat.Mean(cvs, nil)
			ps.CVNeurons = len(cvs)
		}
		rep.Populations = append(rep.Populations, ps)
	}
	return rep
}

// CV returns the coefficient of variation of the inter-spike intervals of a
// sorted spike train, or NaN if it has fewer than two intervals.
func CV(train []float64) float64 {
	if len(train) < 3 {
		return math.NaN()
	}
	isi := make([]float64, len(train)-1)
	for i := range isi {
		isi[i] = train[i+1] - train[i]
	}
	mean, std := stat.MeanStdDev(isi, nil)
	if mean == 0 {
		return math.NaN()
	}
	return std / mean
}
