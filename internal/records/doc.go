// Package records stores key/value records in a pagelog.
//
// A record is framed as uvarint(len(body)) | body, where
// body = uvarint(len(key)) | key | value | crc32c(key|value).
// A zero byte is an empty frame; writers use runs of them to pad a block so a
// record that fits in one block never crosses into the next. Only records
// larger than a block span blocks.
//
//	w := records.NewWriter(log)
//	addr, _ := w.Append([]byte("k"), []byte("v"))
//
//	c := records.NewCursor(log, log.LowAddress())
//	for c.Next() {
//	    fmt.Printf("%d %s=%s\n", c.Address(), c.Key(), c.Value())
//	}
//	if err := c.Err(); err != nil { /* handle */ }
package records
