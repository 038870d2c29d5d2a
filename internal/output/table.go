// Package output persists simulation trajectories. A Buffer accumulates the
// phase and spike tables in bounded memory and hands each full table pair to a
// Sink, which writes them as numbered Arrow IPC artifacts.
package output

// PhaseTable holds one row per simulation step: the clock and the phase of
// every neuron. Values is row-major with Width entries per row.
type PhaseTable struct {
	Width  int
	Times  []float64
	Values []float64
}

// Rows returns the number of rows in the table.
func (t *PhaseTable) Rows() int { return len(t.Times) }

// Row returns the phases of row i. The slice aliases the table.
func (t *PhaseTable) Row(i int) []float64 {
	return t.Values[i*t.Width : (i+1)*t.Width]
}

func (t *PhaseTable) append(time float64, phases []float64) {
	t.Times = append(t.Times, time)
	t.Values = append(t.Values, phases...)
}

func (t *PhaseTable) reset() {
	t.Times = t.Times[:0]
	t.Values = t.Values[:0]
}

// SpikeTable holds one row per delivered spike vector. Rows are kept sparse,
// as the indices of the neurons that fired, until Dense is called.
type SpikeTable struct {
	Width int
	Times []float64
	Fired [][]int
}

// Rows returns the number of rows in the table.
func (t *SpikeTable) Rows() int { return len(t.Times) }

// Count returns the total number of spikes in the table.
func (t *SpikeTable) Count() int {
	n := 0
	for _, f := range t.Fired {
		n += len(f)
	}
	return n
}

// Dense expands the table into a row-major 0/1 matrix with Width columns.
func (t *SpikeTable) Dense() []uint8 {
	out := make([]uint8, t.Rows()*t.Width)
	for r, fired := range t.Fired {
		row := out[r*t.Width : (r+1)*t.Width]
		for _, i := range fired {
			row[i] = 1
		}
	}
	return out
}

func (t *SpikeTable) append(time float64, fired []int) {
	t.Times = append(t.Times, time)
	t.Fired = append(t.Fired, fired)
}

func (t *SpikeTable) reset() {
	t.Times = t.Times[:0]
	clear(t.Fired)
	t.Fired = t.Fired[:0]
}
