// Package blockio defines the durable I/O capability a page log runs on.
//
// A medium is an ordered sequence of blocks, each addressed by the log offset
// of its first byte. A Reader enumerates and reads blocks; a Writer owns the
// single open block, appends to it, seals it and removes sealed blocks. The log
// never touches files directly: memstore, filestore and kvstore provide
// concrete media.
//
//	w := store.Writer()
//	_ = w.Create(0)
//	_ = w.Append(page)
//	_ = w.Sync()
//
//	blocks, _ := store.Reader().ListBlocks()
package blockio
