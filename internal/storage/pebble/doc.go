// Package pebblestore wraps Pebble with an fsync policy, batch commits, key
// range helpers and a small metrics hook. It backs the kvstore block medium
// and the digest index.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	_ = db.ScanPrefix([]byte("m/"), func(k, v []byte) bool { return true })
package pebblestore
