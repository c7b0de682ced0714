package objects

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// PackIndexEntry is one row handed to the index writers: the object id,
// its entry offset in the pack, and the CRC32 of the packed entry bytes
// (header plus compressed payload). Version 1 output ignores the CRC.
type PackIndexEntry struct {
	ID     ObjectID
	Offset uint64
	CRC    uint32
}

func sortedIndexEntries(entries []PackIndexEntry) []PackIndexEntry {
	out := make([]PackIndexEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out
}

func buildIndexFanout(entries []PackIndexEntry) [256]uint32 {
	var counts [256]uint32
	for _, e := range entries {
		counts[e.ID[0]]++
	}
	var fanout [256]uint32
	var total uint32
	for i := 0; i < 256; i++ {
		total += counts[i]
		fanout[i] = total
	}
	return fanout
}

// WritePackIndexV2 writes a version 2 index for entries and the pack's
// trailer checksum, returning the index's own checksum.
func WritePackIndexV2(w io.Writer, entries []PackIndexEntry, packChecksum ObjectID) (ObjectID, error) {
	sorted := sortedIndexEntries(entries)

	var buf bytes.Buffer
	buf.Write(tocMagic[:])
	writeBE32(&buf, 2)

	fanout := buildIndexFanout(sorted)
	for i := 0; i < 256; i++ {
		writeBE32(&buf, fanout[i])
	}
	for _, e := range sorted {
		buf.Write(e.ID[:])
	}
	for _, e := range sorted {
		writeBE32(&buf, e.CRC)
	}

	large := make([]uint64, 0)
	for _, e := range sorted {
		if e.Offset < uint64(largeOffsetBit) {
			writeBE32(&buf, uint32(e.Offset))
			continue
		}
		writeBE32(&buf, largeOffsetBit|uint32(len(large)))
		large = append(large, e.Offset)
	}
	for _, o := range large {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], o)
		buf.Write(b[:])
	}

	buf.Write(packChecksum[:])
	sum := ObjectID(sha1.Sum(buf.Bytes()))
	buf.Write(sum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return ZeroID, fmt.Errorf("write pack index: %w", err)
	}
	return sum, nil
}

// WritePackIndexV1 writes the original index format. Offsets at or past
// 2 GiB are refused with an error; use version 2 for such packs.
func WritePackIndexV1(w io.Writer, entries []PackIndexEntry, packChecksum ObjectID) (ObjectID, error) {
	sorted := sortedIndexEntries(entries)

	var buf bytes.Buffer
	fanout := buildIndexFanout(sorted)
	for i := 0; i < 256; i++ {
		writeBE32(&buf, fanout[i])
	}
	for _, e := range sorted {
		if e.Offset >= uint64(largeOffsetBit) {
			return ZeroID, fmt.Errorf("offset %d for %s exceeds v1 index range", e.Offset, e.ID)
		}
		writeBE32(&buf, uint32(e.Offset))
		buf.Write(e.ID[:])
	}

	buf.Write(packChecksum[:])
	sum := ObjectID(sha1.Sum(buf.Bytes()))
	buf.Write(sum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return ZeroID, fmt.Errorf("write pack index: %w", err)
	}
	return sum, nil
}

func writeBE32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
