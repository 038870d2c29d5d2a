package output

import (
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/sparsenet/internal/constants"
)

// Artifact describes one persisted table.
type Artifact struct {
	Kind     constants.ArtifactKind `json:"kind"`
	Seq      int                    `json:"seq"`
	Name     string                 `json:"name"`
	Rows     int                    `json:"rows"`
	Bytes    int64                  `json:"bytes"`
	Checksum string                 `json:"checksum"`
}

// Sink persists one flush cycle. Both tables of a cycle share seq.
type Sink interface {
	WritePhases(seq int, t *PhaseTable) (Artifact, error)
	WriteSpikes(seq int, t *SpikeTable) (Artifact, error)
}

// TimeColumn is the name of the first column of every artifact.
const TimeColumn = "t"

// NeuronColumn returns the column name of neuron i.
func NeuronColumn(i int) string {
	return fmt.Sprintf("n%d", i)
}

// Schema returns the Arrow schema of an artifact of the given kind for a
// network of n neurons.
func Schema(kind constants.ArtifactKind, n int) *arrow.Schema {
	var typ arrow.DataType = arrow.PrimitiveTypes.Float64
	if kind == constants.ArtifactSpikes {
		typ = arrow.PrimitiveTypes.Uint8
	}
	fields := make([]arrow.Field, 0, n+1)
	fields = append(fields, arrow.Field{Name: TimeColumn, Type: arrow.PrimitiveTypes.Float64})
	for i := 0; i < n; i++ {
		fields = append(fields, arrow.Field{Name: NeuronColumn(i), Type: typ})
	}
	md := arrow.NewMetadata([]string{"kind"}, []string{kind.String()})
	return arrow.NewSchema(fields, &md)
}

// ArrowSink writes each table as an Arrow IPC file named after its kind and
// sequence number, e.g. phases0.arrow.
type ArrowSink struct {
	dir string
	mem memory.Allocator
}

// NewArrowSink returns a sink writing into dir, which must exist.
func NewArrowSink(dir string) *ArrowSink {
	return &ArrowSink{dir: dir, mem: memory.DefaultAllocator}
}

// WritePhases implements Sink.
func (s *ArrowSink) WritePhases(seq int, t *PhaseTable) (Artifact, error) {
	schema := Schema(constants.ArtifactPhases, t.Width)
	b := array.NewRecordBuilder(s.mem, schema)
	defer b.Release()

	rows := t.Rows()
	b.Field(0).(*array.Float64Builder).AppendValues(t.Times, nil)
	for c := 0; c < t.Width; c++ {
		fb := b.Field(c + 1).(*array.Float64Builder)
		fb.Reserve(rows)
		for r := 0; r < rows; r++ {
			fb.UnsafeAppend(t.Values[r*t.Width+c])
		}
	}
	return s.write(constants.ArtifactPhases, seq, rows, schema, b)
}

// WriteSpikes implements Sink. The sparse rows are densified here.
func (s *ArrowSink) WriteSpikes(seq int, t *SpikeTable) (Artifact, error) {
	schema := Schema(constants.ArtifactSpikes, t.Width)
	b := array.NewRecordBuilder(s.mem, schema)
	defer b.Release()

	rows := t.Rows()
	dense := t.Dense()
	b.Field(0).(*array.Float64Builder).AppendValues(t.Times, nil)
	for c := 0; c < t.Width; c++ {
		ub := b.Field(c + 1).(*array.Uint8Builder)
		ub.Reserve(rows)
		for r := 0; r < rows; r++ {
			ub.UnsafeAppend(dense[r*t.Width+c])
		}
	}
	return s.write(constants.ArtifactSpikes, seq, rows, schema, b)
}

func (s *ArrowSink) write(kind constants.ArtifactKind, seq, rows int, schema *arrow.Schema, b *array.RecordBuilder) (Artifact, error) {
	rec := b.NewRecord()
	defer rec.Release()

	name := kind.FileName(seq)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return Artifact{}, fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(s.mem))
	if err != nil {
		return Artifact{}, fmt.Errorf("opening arrow writer for %s: %w", name, err)
	}
	if err := w.Write(rec); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return Artifact{}, fmt.Errorf("finishing %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		return Artifact{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("closing %s: %w", name, err)
	}

	// Hashed after close: the IPC writer seeks.
	sum, err := FileChecksum(f.Name())
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Kind:     kind,
		Seq:      seq,
		Name:     name,
		Rows:     rows,
		Bytes:    info.Size(),
		Checksum: sum,
	}, nil
}

func checksum(h hash.Hash) string {
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
