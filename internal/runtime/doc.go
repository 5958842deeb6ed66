// Package runtime wires a block medium, a page cache, a pagelog.Log and its
// listeners into a single-node instance. It exposes Open/Close, a health
// check, retention, digest verification and a follower for read-only opens.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	addr, _ := records.NewWriter(rt.Log()).Append([]byte("k"), []byte("v"))
package runtime
