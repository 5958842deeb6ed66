package records

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrChecksum reports a record whose checksum does not match.
	ErrChecksum = errors.New("record checksum mismatch")
	// ErrMalformed reports a frame that cannot be decoded.
	ErrMalformed = errors.New("malformed record")
	// ErrTooLarge reports a record whose body exceeds MaxBodySize.
	ErrTooLarge = errors.New("record too large")
)

// MaxBodySize bounds an encoded record body. Larger length prefixes are
// treated as corruption.
const MaxBodySize = 64 << 20

// Record is a decoded key/value pair.
type Record struct {
	Key   []byte
	Value []byte
}

// EncodeBody encodes key and value with their checksum.
func EncodeBody(key, value []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(key)+len(value)+4)
	out = binary.AppendUvarint(out, uint64(len(key)))
	out = append(out, key...)
	out = append(out, value...)

	crc := crc32.Update(0, castagnoli, key)
	crc = crc32.Update(crc, castagnoli, value)
	return binary.BigEndian.AppendUint32(out, crc)
}

// EncodeFrame returns the length-prefixed frame of a record.
func EncodeFrame(key, value []byte) []byte {
	body := EncodeBody(key, value)
	out := make([]byte, 0, binary.MaxVarintLen64+len(body))
	out = binary.AppendUvarint(out, uint64(len(body)))
	return append(out, body...)
}

// DecodeBody decodes a body produced by EncodeBody. The result aliases b.
func DecodeBody(b []byte) (Record, error) {
	if len(b) < 1+4 {
		return Record{}, ErrMalformed
	}
	klen, n := binary.Uvarint(b)
	if n <= 0 || len(b)-n < 4 || klen > uint64(len(b)-n-4) {
		return Record{}, ErrMalformed
	}
	key := b[n : n+int(klen)]
	value := b[n+int(klen) : len(b)-4]
	crc := crc32.Update(0, castagnoli, key)
	crc = crc32.Update(crc, castagnoli, value)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Record{}, ErrChecksum
	}
	return Record{Key: key, Value: value}, nil
}
