package pebblestore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type testMetrics struct {
	read         int
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGetDelete(t *testing.T) {
	db, metrics := newTestDB(t)

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}
	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}
	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncWALKeepsMemtable(t *testing.T) {
	db, _ := newTestDB(t)
	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	before := db.inner.Metrics().Flush.Count
	for i := 0; i < 3; i++ {
		if err := db.SyncWAL(); err != nil {
			t.Fatalf("sync wal: %v", err)
		}
	}
	if after := db.inner.Metrics().Flush.Count; after != before {
		t.Fatalf("memtable flushes went from %d to %d", before, after)
	}
	if got, err := db.Get([]byte("k")); err != nil || string(got) != "v" {
		t.Fatalf("get after sync = %q, %v", got, err)
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	_ = b.Set([]byte("a"), []byte("1"), nil)
	_ = b.Set([]byte("b"), []byte("2"), nil)
	if err := db.CommitBatchSync(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	if metrics.batchCommits != 1 || metrics.batchOps != 2 {
		t.Fatalf("commits=%d ops=%d", metrics.batchCommits, metrics.batchOps)
	}
	if metrics.batchBytes <= 0 {
		t.Fatalf("expected positive batch bytes")
	}
}

func TestCommitHonoursCancelledContext(t *testing.T) {
	db, _ := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("x"), []byte("y"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanPrefixAndDeleteRange(t *testing.T) {
	db, _ := newTestDB(t)
	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	var keys []string
	if err := db.ScanPrefix([]byte("a/"), func(k, v []byte) bool {
		if !bytes.Equal(k, v) {
			t.Fatalf("value mismatch for %q", k)
		}
		keys = append(keys, string(k))
		return true
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a/1" || keys[2] != "a/3" {
		t.Fatalf("keys = %v", keys)
	}

	if err := db.DeleteRange([]byte("a/2"), PrefixEnd([]byte("a/"))); err != nil {
		t.Fatalf("delete range: %v", err)
	}
	keys = keys[:0]
	_ = db.ScanPrefix(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "b/1" {
		t.Fatalf("keys after delete range = %v", keys)
	}
}

func TestPrefixEnd(t *testing.T) {
	cases := []struct {
		in, want []byte
	}{
		{[]byte("a/"), []byte("a0")},
		{[]byte{0x01, 0xff}, []byte{0x02}},
		{[]byte{0xff, 0xff}, nil},
		{nil, nil},
	}
	for _, c := range cases {
		if got := PrefixEnd(c.in); !bytes.Equal(got, c.want) {
			t.Fatalf("PrefixEnd(%x) = %x, want %x", c.in, got, c.want)
		}
	}
}

func TestParseFsyncMode(t *testing.T) {
	if ParseFsyncMode("always") != FsyncModeAlways || ParseFsyncMode("bogus") != FsyncModeUnspecified {
		t.Fatalf("unexpected mode mapping")
	}
}
