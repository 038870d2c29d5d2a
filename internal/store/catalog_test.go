package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testRun(id string, created time.Time) Run {
	return Run{
		ID:               id,
		Dir:              "/runs/" + id,
		CreatedAt:        created,
		Neurons:          20,
		Populations:      []int{10, 10},
		Duration:         1,
		FinalTime:        1.02,
		Steps:            345,
		Spikes:           12,
		ConnectivitySeed: 1,
		DynamicsSeed:     2,
		ParamsHash:       "sha256:abc",
	}
}

func TestCatalog_AddAndGet(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	artifacts := []Artifact{
		{Name: "phases0.arrow", Kind: "phases", Seq: 0, Rows: 345, Bytes: 1000, Checksum: "sha256:1"},
		{Name: "spikes0.arrow", Kind: "spikes", Seq: 0, Rows: 12, Bytes: 200, Checksum: "sha256:2"},
	}
	if err := c.AddRun(ctx, testRun("r1", created), artifacts); err != nil {
		t.Fatalf("AddRun() error = %v", err)
	}

	got, err := c.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if len(got.Populations) != 2 || got.Populations[1] != 10 {
		t.Errorf("Populations = %v", got.Populations)
	}
	if got.Steps != 345 || got.FinalTime != 1.02 || got.DynamicsSeed != 2 {
		t.Errorf("run = %+v", got)
	}

	arts, err := c.Artifacts(ctx, "r1")
	if err != nil {
		t.Fatalf("Artifacts() error = %v", err)
	}
	if len(arts) != 2 || arts[0].Kind != "phases" || arts[1].Checksum != "sha256:2" {
		t.Errorf("Artifacts() = %+v", arts)
	}
}

func TestCatalog_ListNewestFirst(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		if err := c.AddRun(ctx, testRun(id, base.Add(offset)), nil); err != nil {
			t.Fatalf("AddRun(%d) error = %v", i, err)
		}
	}

	runs, err := c.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Errorf("ListRuns() order = %v, want [new mid old]", ids)
	}
}

func TestCatalog_ReAddReplaces(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	run := testRun("r1", time.Now())

	if err := c.AddRun(ctx, run, []Artifact{{Name: "a", Kind: "phases"}, {Name: "b", Kind: "spikes"}}); err != nil {
		t.Fatal(err)
	}
	run.Steps = 1
	if err := c.AddRun(ctx, run, []Artifact{{Name: "c", Kind: "phases"}}); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Steps != 1 {
		t.Errorf("Steps = %d, want 1", got.Steps)
	}
	arts, err := c.Artifacts(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 1 || arts[0].Name != "c" {
		t.Errorf("Artifacts() = %+v, want only c", arts)
	}
}

func TestCatalog_DeleteCascades(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.AddRun(ctx, testRun("r1", time.Now()), []Artifact{{Name: "a", Kind: "phases"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	arts, err := c.Artifacts(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 0 {
		t.Errorf("artifacts survived delete: %+v", arts)
	}

	if _, err := c.GetRun(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
	if err := c.DeleteRun(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRun() error = %v, want ErrNotFound", err)
	}
}

func TestCatalog_FindByParams(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	a := testRun("a", time.Now())
	b := testRun("b", time.Now())
	b.ParamsHash = "sha256:other"
	for _, r := range []Run{a, b} {
		if err := c.AddRun(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := c.FindByParams(ctx, "sha256:abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "a" {
		t.Errorf("FindByParams() = %+v", runs)
	}
}

func TestOpen_Reopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	c, err := Open(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddRun(ctx, testRun("keep", time.Now()), nil); err != nil {
		t.Fatal(err)
	}
	if c.Path() != filepath.Join(root, "catalog.db") {
		t.Errorf("Path() = %q", c.Path())
	}
	c.Close()

	c, err = Open(ctx, root)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()
	if _, err := c.GetRun(ctx, "keep"); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (99, datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(ctx, db); err == nil {
		t.Error("expected error for newer schema version")
	}
}
