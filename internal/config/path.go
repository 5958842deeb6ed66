package config

import (
	"os"
	"path/filepath"
	goruntime "runtime"
)

// Entries of a data directory.
const (
	BlocksDirName = "blocks"
	DBDirName     = "db"
)

// Layout is the on-disk arrangement of one data directory.
type Layout struct {
	Root string
	// Blocks holds the file backend's block files.
	Blocks string
	// DB is the Pebble database: blocks of the pebble backend and digests.
	DB string
	// Archive holds xz archives of deleted blocks; empty when disabled.
	Archive string
}

// Layout resolves the directories c describes. An empty DataDir falls back
// to DefaultDataDir; a relative archive directory is taken inside the root.
func (c Config) Layout() Layout {
	root := c.DataDir
	if root == "" {
		root = DefaultDataDir()
	}
	l := Layout{
		Root:   root,
		Blocks: filepath.Join(root, BlocksDirName),
		DB:     filepath.Join(root, DBDirName),
	}
	if dir := c.Archive.Dir; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		l.Archive = dir
	}
	return l
}

// DefaultDataDir returns where pagelog keeps data when no directory is
// configured: PAGELOG_DATA_DIR, then $XDG_DATA_HOME/pagelog, then the
// platform's per-user data directory. Without a home directory it is
// ./pagelog-data.
func DefaultDataDir() string {
	if dir := os.Getenv("PAGELOG_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pagelog")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "pagelog-data")
	}
	switch goruntime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "pagelog")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "pagelog")
		}
		return filepath.Join(home, "AppData", "Local", "pagelog")
	default:
		return filepath.Join(home, ".local", "share", "pagelog")
	}
}
