package objects

import (
	"fmt"
	"io"
)

// encodeEntryHeader encodes the variable-length (type, size) header used
// at the front of pack entries and, in the non-legacy layout, at the
// front of loose object files. First byte: bit 7 continuation, bits 4-6
// type code, bits 0-3 the low four bits of size. Continuation bytes
// carry 7 size bits each, little-endian.
func encodeEntryHeader(t Type, size uint64) []byte {
	out := make([]byte, 0, 10)
	b := byte(t&0x7) << 4
	b |= byte(size & 0x0f)
	size >>= 4
	for size > 0 {
		out = append(out, b|0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	return append(out, b)
}

// readEntryHeader decodes a variable-length entry header from r,
// returning the type, uncompressed size, and bytes consumed.
func readEntryHeader(r io.ByteReader) (Type, uint64, int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("entry header: %w", err)
	}
	t := Type(b>>4) & 0x7
	size := uint64(b & 0x0f)
	shift := uint(4)
	n := 1
	for b&0x80 != 0 {
		if shift > 63 {
			return 0, 0, n, fmt.Errorf("entry header size overflows: %w", ErrCorruptObject)
		}
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, n, fmt.Errorf("entry header truncated: %w", ErrCorruptObject)
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
		n++
	}
	return t, size, n, nil
}

// encodeOfsDistance encodes the backward distance of an OFS_DELTA entry.
// The encoding is big-endian base-128 with an off-by-one accumulation on
// continuation, matching the pack offset convention.
func encodeOfsDistance(distance uint64) []byte {
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte(distance&0x7f) | 0x80}, b...)
	}
	return b
}

// readOfsDistance decodes an OFS_DELTA backward distance from r.
func readOfsDistance(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("ofs-delta distance: %w", err)
	}
	distance := uint64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("ofs-delta distance truncated: %w", ErrCorruptObject)
		}
		if distance > (1<<57)-1 {
			return 0, fmt.Errorf("ofs-delta distance overflows: %w", ErrCorruptObject)
		}
		distance = ((distance + 1) << 7) | uint64(b&0x7f)
	}
	return distance, nil
}
