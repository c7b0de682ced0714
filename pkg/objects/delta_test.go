package objects

import (
	"bytes"
	"errors"
	"testing"
)

func TestApplyInsertOnlyDelta(t *testing.T) {
	base := []byte("the base object")
	target := bytes.Repeat([]byte("payload beyond one literal chunk "), 20)

	delta := buildInsertDelta(base, target)
	got, err := applyDelta(base, delta)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Errorf("reconstructed %d bytes, want %d", len(got), len(target))
	}
}

func TestApplyCopyDelta(t *testing.T) {
	base := []byte("0123456789abcdef")

	// Copy [4,12) out of the base, then insert "XY", then copy [0,4).
	var delta bytes.Buffer
	delta.Write(encodeDeltaVarint(uint64(len(base))))
	delta.Write(encodeDeltaVarint(14))
	delta.Write([]byte{0x80 | 0x01 | 0x10, 4, 8}) // offset byte 0, size byte 0
	delta.Write([]byte{2, 'X', 'Y'})
	delta.Write([]byte{0x80 | 0x10, 4}) // offset omitted (0), size 4

	got, err := applyDelta(base, delta.Bytes())
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	want := "456789abXY0123"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyDeltaBaseSizeMismatch(t *testing.T) {
	base := []byte("actual base")
	delta := buildInsertDelta([]byte("claimed base of another size"), []byte("t"))
	if _, err := applyDelta(base, delta); !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("expected ErrCorruptObject, got %v", err)
	}
}

func TestApplyDeltaCopyOutOfBounds(t *testing.T) {
	base := []byte("short")

	var delta bytes.Buffer
	delta.Write(encodeDeltaVarint(uint64(len(base))))
	delta.Write(encodeDeltaVarint(64))
	delta.Write([]byte{0x80 | 0x01 | 0x10, 2, 64}) // 64 bytes from offset 2

	if _, err := applyDelta(base, delta.Bytes()); !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("expected ErrCorruptObject, got %v", err)
	}
}

func TestApplyDeltaResultSizeMismatch(t *testing.T) {
	base := []byte("base")

	var delta bytes.Buffer
	delta.Write(encodeDeltaVarint(uint64(len(base))))
	delta.Write(encodeDeltaVarint(10)) // declares 10, provides 3
	delta.Write([]byte{3, 'a', 'b', 'c'})

	if _, err := applyDelta(base, delta.Bytes()); !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("expected ErrCorruptObject, got %v", err)
	}
}

func TestApplyDeltaReservedCommand(t *testing.T) {
	base := []byte("base")

	var delta bytes.Buffer
	delta.Write(encodeDeltaVarint(uint64(len(base))))
	delta.Write(encodeDeltaVarint(1))
	delta.WriteByte(0)

	if _, err := applyDelta(base, delta.Bytes()); !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("expected ErrCorruptObject, got %v", err)
	}
}

func TestDeltaVarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 1 << 31, 1 << 62} {
		enc := encodeDeltaVarint(v)
		got, err := decodeDeltaVarint(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestOfsDistanceRoundTrip(t *testing.T) {
	for _, v := range []uint64{1, 0x7f, 0x80, 0x100, 0x4000, 0x12345, 1 << 31} {
		enc := encodeOfsDistance(v)
		got, err := readOfsDistance(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}
