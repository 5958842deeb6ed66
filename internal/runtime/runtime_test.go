package runtime

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rzbill/pagelog/internal/blockio"
	cfgpkg "github.com/rzbill/pagelog/internal/config"
	"github.com/rzbill/pagelog/internal/records"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

func testConfig(t *testing.T, backend string) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backend = backend
	cfg.PageSize = 64
	cfg.FileSize = 256
	cfg.Fsync = "never"
	cfg.Cache.BudgetPercent = 0
	cfg.Cache.BudgetBytes = 64 << 10
	return cfg
}

func open(t *testing.T, cfg cfgpkg.Config, readOnly bool) *Runtime {
	t.Helper()
	rt, err := Open(Options{Config: cfg, ReadOnly: readOnly, Logger: logpkg.NewNopLogger()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	for _, backend := range []string{cfgpkg.BackendFile, cfgpkg.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			rt := open(t, testConfig(t, backend), false)
			if err := rt.CheckHealth(context.Background()); err != nil {
				t.Fatalf("health: %v", err)
			}
			if err := rt.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if err := rt.CheckHealth(context.Background()); err == nil {
				t.Fatalf("health after close should fail")
			}
		})
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	for _, backend := range []string{cfgpkg.BackendFile, cfgpkg.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			rt, err := Open(Options{Config: cfg, Logger: logpkg.NewNopLogger()})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			w := records.NewWriter(rt.Log())
			for i := 0; i < 40; i++ {
				if _, err := w.Append([]byte{byte(i)}, bytes.Repeat([]byte{byte(i)}, 10)); err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
			}
			if err := rt.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			rt = open(t, cfg, false)
			n, err := records.Count(rt.Log())
			if err != nil || n != 40 {
				t.Fatalf("count after reopen = %d, %v", n, err)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig(t, cfgpkg.BackendFile)
	cfg.PageSize = 100
	if _, err := Open(Options{Config: cfg, Logger: logpkg.NewNopLogger()}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestSecondWriterIsLocked(t *testing.T) {
	cfg := testConfig(t, cfgpkg.BackendFile)
	open(t, cfg, false)
	_, err := Open(Options{Config: cfg, Logger: logpkg.NewNopLogger()})
	if !errors.Is(err, blockio.ErrLocked) {
		t.Fatalf("second writer = %v, want ErrLocked", err)
	}
}

func TestPruneArchivesAndForgetsDigests(t *testing.T) {
	cfg := testConfig(t, cfgpkg.BackendFile)
	cfg.Archive.Dir = filepath.Join(t.TempDir(), "archive")
	rt := open(t, cfg, false)

	if _, err := rt.Log().Append(bytes.Repeat([]byte("x"), 1000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if n, err := rt.Prune(context.Background(), 0); err != nil || n != 0 {
		t.Fatalf("prune without limit = %d, %v", n, err)
	}
	n, err := rt.Prune(context.Background(), 500)
	if err != nil || n != 2 {
		t.Fatalf("prune = %d, %v; want 2", n, err)
	}
	if rt.Log().LowAddress() != 512 {
		t.Fatalf("low = %d, want 512", rt.Log().LowAddress())
	}
	archived, err := rt.Archiver().List()
	if err != nil || len(archived) != 2 || archived[0] != 0 || archived[1] != 256 {
		t.Fatalf("archived = %v, %v", archived, err)
	}
	rep, err := rt.Verify(context.Background())
	if err != nil || !rep.OK() || rep.Checked != 1 {
		t.Fatalf("verify = %+v, %v", rep, err)
	}
}

func TestFollowerSeesWriter(t *testing.T) {
	cfg := testConfig(t, cfgpkg.BackendFile)
	writer := open(t, cfg, false)
	follower := open(t, cfg, true)
	if follower.Digests() != nil {
		t.Fatalf("read-only runtime should not track digests")
	}

	if _, err := records.NewWriter(writer.Log()).Append([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := writer.Log().Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	changed, err := follower.Follower(nil).Poll()
	if err != nil || !changed {
		t.Fatalf("poll = %v, %v", changed, err)
	}
	c := records.NewCursor(follower.Log(), follower.Log().LowAddress())
	if !c.Next() || string(c.Key()) != "k" || string(c.Value()) != "v" {
		t.Fatalf("follower cursor: %v", c.Err())
	}
}
