package blockio

import (
	"errors"
	"testing"
)

func TestBlockBounds(t *testing.T) {
	b := Block{Address: 4096, Length: 1024}
	if b.End() != 5120 {
		t.Fatalf("end = %d", b.End())
	}
	if !b.Contains(4096) || !b.Contains(5119) || b.Contains(5120) || b.Contains(4095) {
		t.Fatalf("contains mismatch for %+v", b)
	}
}

func TestTotalAndEnd(t *testing.T) {
	blocks := []Block{{Address: 0, Length: 100}, {Address: 100, Length: 50}}
	if Total(blocks) != 150 {
		t.Fatalf("total = %d", Total(blocks))
	}
	if End(blocks) != 150 {
		t.Fatalf("end = %d", End(blocks))
	}
	if End(nil) != 0 {
		t.Fatalf("end of empty = %d", End(nil))
	}
}

func TestErrorsUnwrap(t *testing.T) {
	var err error = &RangeError{Address: 10, Length: 5, High: 12}
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("range error should unwrap to ErrOutOfRange")
	}
	cause := errors.New("disk gone")
	err = &ReadError{Op: "read", Address: 1, Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("read error should unwrap to cause")
	}
}
