package config

import (
	"path/filepath"
	goruntime "runtime"
	"testing"
)

func TestDefaultDataDir(t *testing.T) {
	tests := []struct {
		name    string
		dataDir string
		xdg     string
		want    string
	}{
		{"explicit data dir wins", "/srv/pagelog", "/custom/data", "/srv/pagelog"},
		{"xdg data home", "", "/custom/data", filepath.Join("/custom/data", "pagelog")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAGELOG_DATA_DIR", tt.dataDir)
			t.Setenv("XDG_DATA_HOME", tt.xdg)
			if got := DefaultDataDir(); got != tt.want {
				t.Fatalf("DefaultDataDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDataDirUnderHome(t *testing.T) {
	if goruntime.GOOS != "linux" {
		t.Skip("home layout differs per platform")
	}
	t.Setenv("PAGELOG_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/alice")
	want := filepath.Join("/home/alice", ".local", "share", "pagelog")
	if got := DefaultDataDir(); got != want {
		t.Fatalf("DefaultDataDir() = %q, want %q", got, want)
	}

	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != filepath.Join(".", "pagelog-data") {
		t.Fatalf("DefaultDataDir() without home = %q", got)
	}
}

func TestLayout(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	l := cfg.Layout()
	if l.Root != "/data" || l.Blocks != filepath.Join("/data", "blocks") || l.DB != filepath.Join("/data", "db") {
		t.Fatalf("layout = %+v", l)
	}
	if l.Archive != "" {
		t.Fatalf("archive enabled without a directory: %q", l.Archive)
	}

	cfg.Archive.Dir = "archive"
	if got := cfg.Layout().Archive; got != filepath.Join("/data", "archive") {
		t.Fatalf("relative archive dir = %q", got)
	}
	cfg.Archive.Dir = "/mnt/cold"
	if got := cfg.Layout().Archive; got != "/mnt/cold" {
		t.Fatalf("absolute archive dir = %q", got)
	}

	t.Setenv("PAGELOG_DATA_DIR", "/env/data")
	cfg.DataDir = ""
	if got := cfg.Layout().Root; got != "/env/data" {
		t.Fatalf("root from env = %q", got)
	}
}
