package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveIn(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"artifact", "phases0.arrow", false},
		{"nested", "sub/spikes3.arrow", false},
		{"dot-dot escape", "../elsewhere/phases0.arrow", true},
		{"absolute-looking name stays inside", "/phases0.arrow", false},
		{"root itself", ".", true},
		{"empty", "", true},
		{"null byte", "phases\x000.arrow", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIn(root, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveIn(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && filepath.Dir(got) != root && filepath.Dir(filepath.Dir(got)) != root {
				t.Errorf("ResolveIn(%q) = %q, not under %q", tt.input, got, root)
			}
		})
	}
}

func TestResolveIn_SymlinkOutside(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	_, err := ResolveIn(root, "escape/phases0.arrow")
	if !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("ResolveIn() error = %v, want ErrOutsideRoot", err)
	}
}

func TestEnsureWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureWritableDir(dir); err != nil {
		t.Fatalf("EnsureWritableDir() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestEnsureWritableDir_Errors(t *testing.T) {
	if err := EnsureWritableDir(""); err == nil {
		t.Error("expected error for empty dir")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := EnsureWritableDir(file); err == nil {
		t.Error("expected error when the path is a file")
	}

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		return
	}
	ro := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(ro, 0500); err != nil {
		t.Fatal(err)
	}
	if err := EnsureWritableDir(ro); err == nil {
		t.Error("expected error for read-only directory")
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"simple", "/home/user/runs/r1/manifest.json", ".../r1/manifest.json"},
		{"deep", "/a/b/c/d/e.txt", ".../d/e.txt"},
		{"root file", "/file.txt", "file.txt"},
		{"relative", "dir/file.txt", ".../dir/file.txt"},
		{"just filename", "file.txt", "file.txt"},
		{"trailing slash cleaned", "/home/user/runs/", ".../user/runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactPath(tt.input)
			if got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
