package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/sparsenet/internal/constants"
)

// ErrSchema is returned when an artifact does not have the expected columns.
var ErrSchema = errors.New("output: unexpected artifact schema")

// ArtifactPath is a file found by List together with its sequence number.
type ArtifactPath struct {
	Seq  int
	Path string
}

// List returns the artifacts of the given kind in dir, ordered by sequence
// number (phases2 before phases10).
func List(dir string, kind constants.ArtifactKind) ([]ArtifactPath, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	prefix := kind.String()
	var out []ArtifactPath
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, constants.ArtifactExt) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), constants.ArtifactExt))
		if err != nil || seq < 0 {
			continue
		}
		out = append(out, ArtifactPath{Seq: seq, Path: filepath.Join(dir, name)})
	}
	slices.SortFunc(out, func(a, b ArtifactPath) int { return a.Seq - b.Seq })
	return out, nil
}

// ReadPhases loads a phase artifact.
func ReadPhases(path string) (*PhaseTable, error) {
	t := &PhaseTable{}
	width, err := readRecords(path, arrow.PrimitiveTypes.Float64, func(rec arrow.Record) error {
		width := int(rec.NumCols()) - 1
		rows := int(rec.NumRows())
		t.Times = append(t.Times, rec.Column(0).(*array.Float64).Float64Values()...)
		cols := make([][]float64, width)
		for c := range cols {
			cols[c] = rec.Column(c + 1).(*array.Float64).Float64Values()
		}
		for r := 0; r < rows; r++ {
			for c := range cols {
				t.Values = append(t.Values, cols[c][r])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Width = width
	return t, nil
}

// ReadSpikes loads a spike artifact back into sparse rows.
func ReadSpikes(path string) (*SpikeTable, error) {
	t := &SpikeTable{}
	width, err := readRecords(path, arrow.PrimitiveTypes.Uint8, func(rec arrow.Record) error {
		width := int(rec.NumCols()) - 1
		rows := int(rec.NumRows())
		t.Times = append(t.Times, rec.Column(0).(*array.Float64).Float64Values()...)
		cols := make([][]uint8, width)
		for c := range cols {
			cols[c] = rec.Column(c + 1).(*array.Uint8).Uint8Values()
		}
		for r := 0; r < rows; r++ {
			var fired []int
			for c := range cols {
				if cols[c][r] != 0 {
					fired = append(fired, c)
				}
			}
			t.Fired = append(t.Fired, fired)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Width = width
	return t, nil
}

// readRecords opens an artifact, checks that column 0 is the float64 time
// column and every other column has type want, and calls fn for each record.
// It returns the number of neuron columns.
func readRecords(path string, want arrow.DataType, fn func(arrow.Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	if err := checkSchema(r.Schema(), want); err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return 0, fmt.Errorf("reading %s record %d: %w", filepath.Base(path), i, err)
		}
		if err := fn(rec); err != nil {
			return 0, err
		}
	}
	return len(r.Schema().Fields()) - 1, nil
}

func checkSchema(s *arrow.Schema, want arrow.DataType) error {
	fields := s.Fields()
	if len(fields) < 2 {
		return fmt.Errorf("%d columns: %w", len(fields), ErrSchema)
	}
	if fields[0].Name != TimeColumn || !arrow.TypeEqual(fields[0].Type, arrow.PrimitiveTypes.Float64) {
		return fmt.Errorf("first column %q (%s): %w", fields[0].Name, fields[0].Type, ErrSchema)
	}
	for i, f := range fields[1:] {
		if f.Name != NeuronColumn(i) || !arrow.TypeEqual(f.Type, want) {
			return fmt.Errorf("column %q (%s): %w", f.Name, f.Type, ErrSchema)
		}
	}
	return nil
}
