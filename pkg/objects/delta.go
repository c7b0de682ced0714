package objects

import (
	"bytes"
	"fmt"
	"io"
)

func encodeDeltaVarint(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("delta varint: %w", err)
		}
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large: %w", ErrCorruptObject)
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
}

// applyDelta reconstructs a target object by running delta instructions
// against a fully materialized base. Copy instructions (high bit set)
// pull a range out of the base; literal instructions insert up to 127
// bytes from the delta stream itself.
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("delta base size: %w", err)
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("delta base size %d, have %d: %w", baseSize, len(base), ErrCorruptObject)
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("delta result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}

		if cmd&0x80 != 0 {
			offset, err := packedCopyArg(dr, cmd, 0, 4)
			if err != nil {
				return nil, err
			}
			size, err := packedCopyArg(dr, cmd, 4, 3)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > uint64(len(base)) {
				return nil, fmt.Errorf("delta copy [%d,%d) outside base of %d bytes: %w",
					offset, offset+size, len(base), ErrCorruptObject)
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("reserved delta command 0: %w", ErrCorruptObject)
		}
		start := len(out)
		out = append(out, make([]byte, cmd)...)
		if _, err := io.ReadFull(dr, out[start:]); err != nil {
			return nil, fmt.Errorf("delta literal: %w: %v", ErrCorruptObject, err)
		}
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta produced %d bytes, declared %d: %w", len(out), resultSize, ErrCorruptObject)
	}
	return out, nil
}

// packedCopyArg assembles a copy-instruction argument from the optional
// little-endian bytes whose presence the command's bits [firstBit,
// firstBit+count) announce.
func packedCopyArg(r io.ByteReader, cmd byte, firstBit, count uint) (uint64, error) {
	var v uint64
	for i := uint(0); i < count; i++ {
		if cmd&(1<<(firstBit+i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("delta copy argument: %w: %v", ErrCorruptObject, err)
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// buildInsertDelta encodes target as a valid delta stream made purely of
// literal inserts. Deliberately simple: deterministic output at the cost
// of compression ratio.
func buildInsertDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	for pos := 0; pos < len(target); {
		chunk := len(target) - pos
		if chunk > 127 {
			chunk = 127
		}
		out.WriteByte(byte(chunk))
		out.Write(target[pos : pos+chunk])
		pos += chunk
	}
	return out.Bytes()
}
