package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/scheduler"
)

// memSink keeps flushed tables in memory.
type memSink struct {
	phases []PhaseTable
	spikes []SpikeTable
	seqs   []int
	fail   error
}

func (m *memSink) WritePhases(seq int, t *PhaseTable) (Artifact, error) {
	if m.fail != nil {
		return Artifact{}, m.fail
	}
	m.seqs = append(m.seqs, seq)
	m.phases = append(m.phases, PhaseTable{
		Width:  t.Width,
		Times:  append([]float64(nil), t.Times...),
		Values: append([]float64(nil), t.Values...),
	})
	return Artifact{Kind: constants.ArtifactPhases, Seq: seq, Name: constants.ArtifactPhases.FileName(seq), Rows: t.Rows()}, nil
}

func (m *memSink) WriteSpikes(seq int, t *SpikeTable) (Artifact, error) {
	m.spikes = append(m.spikes, SpikeTable{
		Width: t.Width,
		Times: append([]float64(nil), t.Times...),
		Fired: append([][]int(nil), t.Fired...),
	})
	return Artifact{Kind: constants.ArtifactSpikes, Seq: seq, Name: constants.ArtifactSpikes.FileName(seq), Rows: t.Rows()}, nil
}

func TestCapacity(t *testing.T) {
	tests := []struct {
		budget int64
		n      int
		want   int
	}{
		{1_500_000_000, 1599, 117187},
		{800, 9, 10},
		{10, 100, 1},
		{0, 3, 1},
	}
	for _, tt := range tests {
		if got := Capacity(tt.budget, tt.n); got != tt.want {
			t.Errorf("Capacity(%d, %d) = %d, want %d", tt.budget, tt.n, got, tt.want)
		}
	}
}

func TestNewBuffer_Errors(t *testing.T) {
	if _, err := NewBuffer(0, 100, &memSink{}); !errors.Is(err, ErrWidth) {
		t.Errorf("n=0: error = %v, want ErrWidth", err)
	}
	if _, err := NewBuffer(3, 0, &memSink{}); !errors.Is(err, ErrBudget) {
		t.Errorf("budget=0: error = %v, want ErrBudget", err)
	}
	if _, err := NewBuffer(3, 100, nil); err == nil {
		t.Error("nil sink: expected error")
	}
}

func TestBuffer_FlushRotate(t *testing.T) {
	sink := &memSink{}
	// 3 neurons, 4 values per row, 32 bytes per row: capacity 4.
	b, err := NewBuffer(3, 128, sink)
	if err != nil {
		t.Fatal(err)
	}
	if b.Capacity() != 4 {
		t.Fatalf("Capacity() = %d, want 4", b.Capacity())
	}

	for i := 0; i < 10; i++ {
		rec := scheduler.Record{Time: float64(i), Phases: []float64{float64(i), 0.5, 0.25}}
		if i%3 == 0 {
			rec.Delivered = &scheduler.Delivery{Time: float64(i) + 0.5, Spikes: []int{i % 3, 2}}
		}
		if err := b.Record(rec); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	// Two full flushes at rows 4 and 8, then a tail of 2 rows.
	if len(sink.phases) != 3 {
		t.Fatalf("flushes = %d, want 3", len(sink.phases))
	}
	if want := []int{0, 1, 2}; !equalInts(sink.seqs, want) {
		t.Errorf("seqs = %v, want %v", sink.seqs, want)
	}

	rows := 0
	prev := -1.0
	for _, p := range sink.phases {
		for r := 0; r < p.Rows(); r++ {
			if p.Times[r] <= prev {
				t.Errorf("time %g after %g", p.Times[r], prev)
			}
			prev = p.Times[r]
			if p.Row(r)[0] != p.Times[r] {
				t.Errorf("row %d = %v, time %g", rows, p.Row(r), p.Times[r])
			}
			rows++
		}
	}
	if rows != 10 {
		t.Errorf("phase rows = %d, want 10", rows)
	}

	spikes := 0
	for _, s := range sink.spikes {
		spikes += s.Rows()
	}
	if spikes != 4 {
		t.Errorf("spike rows = %d, want 4", spikes)
	}

	if got := len(b.Artifacts()); got != 6 {
		t.Errorf("Artifacts() = %d, want 6", got)
	}

	if err := b.Record(scheduler.Record{Phases: make([]float64, 3)}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close: error = %v, want ErrClosed", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if len(sink.phases) != 3 {
		t.Errorf("second Close flushed again")
	}
}

func TestBuffer_FlushesAtCapacity(t *testing.T) {
	sink := &memSink{}
	b, err := NewBuffer(1, 32, sink) // capacity 2
	if err != nil {
		t.Fatal(err)
	}

	d := &scheduler.Delivery{Time: 1, Spikes: []int{0}}
	if err := b.Record(scheduler.Record{Time: 0, Phases: []float64{0}, Delivered: d}); err != nil {
		t.Fatal(err)
	}
	if len(sink.phases) != 0 {
		t.Fatal("flushed before capacity")
	}
	if err := b.Record(scheduler.Record{Time: 1, Phases: []float64{0}, Delivered: d}); err != nil {
		t.Fatal(err)
	}
	if len(sink.spikes) != 1 || sink.spikes[0].Rows() != 2 {
		t.Fatalf("expected one flush of 2 spike rows, got %d flushes", len(sink.spikes))
	}
}

func TestBuffer_EmptyTailIsFlushed(t *testing.T) {
	sink := &memSink{}
	b, err := NewBuffer(2, 1000, sink)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if len(sink.phases) != 1 || sink.phases[0].Rows() != 0 {
		t.Fatalf("expected a single empty flush, got %d", len(sink.phases))
	}
}

func TestBuffer_SinkErrorIsFatal(t *testing.T) {
	boom := errors.New("read-only file system")
	b, err := NewBuffer(1, 16, &memSink{fail: boom}) // capacity 1
	if err != nil {
		t.Fatal(err)
	}
	err = b.Record(scheduler.Record{Phases: []float64{0}})
	if !errors.Is(err, boom) {
		t.Fatalf("Record error = %v, want %v", err, boom)
	}
}

func TestBuffer_RejectsWrongWidth(t *testing.T) {
	b, err := NewBuffer(2, 1000, &memSink{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Record(scheduler.Record{Phases: []float64{1}}); !errors.Is(err, ErrWidth) {
		t.Errorf("error = %v, want ErrWidth", err)
	}
}

func TestSpikeTable_Dense(t *testing.T) {
	st := SpikeTable{Width: 4}
	st.append(0.1, []int{0, 3})
	st.append(0.2, nil)
	st.append(0.3, []int{2})

	want := []uint8{1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0}
	got := st.Dense()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dense() = %v, want %v", got, want)
		}
	}
	if st.Count() != 3 {
		t.Errorf("Count() = %d, want 3", st.Count())
	}
}

func TestArrowSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewArrowSink(dir)

	pt := &PhaseTable{Width: 3}
	pt.append(0.5, []float64{0.1, 0.2, 0.3})
	pt.append(0.75, []float64{0.4, 1.1, 0})
	pa, err := sink.WritePhases(7, pt)
	if err != nil {
		t.Fatal(err)
	}
	if pa.Name != "phases7.arrow" || pa.Rows != 2 || pa.Bytes == 0 {
		t.Errorf("artifact = %+v", pa)
	}

	sum, err := FileChecksum(filepath.Join(dir, pa.Name))
	if err != nil {
		t.Fatal(err)
	}
	if sum != pa.Checksum {
		t.Errorf("checksum %s, file has %s", pa.Checksum, sum)
	}

	got, err := ReadPhases(filepath.Join(dir, pa.Name))
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 3 || got.Rows() != 2 {
		t.Fatalf("read %d rows of width %d", got.Rows(), got.Width)
	}
	for i := range pt.Values {
		if got.Values[i] != pt.Values[i] {
			t.Fatalf("Values = %v, want %v", got.Values, pt.Values)
		}
	}

	st := &SpikeTable{Width: 3}
	st.append(0.55, []int{1})
	sa, err := sink.WriteSpikes(7, st)
	if err != nil {
		t.Fatal(err)
	}
	spikes, err := ReadSpikes(filepath.Join(dir, sa.Name))
	if err != nil {
		t.Fatal(err)
	}
	if spikes.Rows() != 1 || spikes.Times[0] != 0.55 || !equalInts(spikes.Fired[0], []int{1}) {
		t.Errorf("spikes = %+v", spikes)
	}

	// A spike artifact is not a phase artifact.
	if _, err := ReadPhases(filepath.Join(dir, sa.Name)); !errors.Is(err, ErrSchema) {
		t.Errorf("ReadPhases(spikes) error = %v, want ErrSchema", err)
	}
}

func TestArrowSink_ArtifactDescribesFile(t *testing.T) {
	dir := t.TempDir()
	sink := NewArrowSink(dir)

	big := &PhaseTable{Width: 4}
	for i := 0; i < 64; i++ {
		big.append(float64(i), []float64{0.1, 0.2, 0.3, 0.4})
	}
	if _, err := sink.WritePhases(0, big); err != nil {
		t.Fatal(err)
	}

	// Rewriting the same cycle with fewer rows truncates the old file.
	small := &PhaseTable{Width: 4}
	small.append(1, []float64{0, 0, 0, 0})
	pa, err := sink.WritePhases(0, small)
	if err != nil {
		t.Fatal(err)
	}
	sa, err := sink.WriteSpikes(0, &SpikeTable{Width: 4})
	if err != nil {
		t.Fatal(err)
	}

	for _, a := range []Artifact{pa, sa} {
		path := filepath.Join(dir, a.Name)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if a.Bytes != info.Size() {
			t.Errorf("%s: Bytes = %d, file has %d", a.Name, a.Bytes, info.Size())
		}
		sum, err := FileChecksum(path)
		if err != nil {
			t.Fatal(err)
		}
		if a.Checksum != sum {
			t.Errorf("%s: Checksum = %s, file has %s", a.Name, a.Checksum, sum)
		}
	}

	got, err := ReadPhases(filepath.Join(dir, pa.Name))
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows() != 1 {
		t.Errorf("read %d rows, want 1", got.Rows())
	}
}

func TestArrowSink_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArrowSink(dir).WriteSpikes(0, &SpikeTable{Width: 5})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadSpikes(filepath.Join(dir, a.Name))
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows() != 0 || got.Width != 5 {
		t.Errorf("read %d rows of width %d, want 0 rows of width 5", got.Rows(), got.Width)
	}
}

func TestArrowSink_UnwritableDir(t *testing.T) {
	sink := NewArrowSink(filepath.Join(t.TempDir(), "missing"))
	if _, err := sink.WritePhases(0, &PhaseTable{Width: 1}); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestList_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	sink := NewArrowSink(dir)
	for _, seq := range []int{10, 2, 0, 1} {
		if _, err := sink.WritePhases(seq, &PhaseTable{Width: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := sink.WriteSpikes(3, &SpikeTable{Width: 1}); err != nil {
		t.Fatal(err)
	}

	got, err := List(dir, constants.ArtifactPhases)
	if err != nil {
		t.Fatal(err)
	}
	var seqs []int
	for _, a := range got {
		seqs = append(seqs, a.Seq)
	}
	if want := []int{0, 1, 2, 10}; !equalInts(seqs, want) {
		t.Errorf("List() seqs = %v, want %v", seqs, want)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
