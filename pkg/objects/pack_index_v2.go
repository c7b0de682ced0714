package objects

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// packIndexV2 holds the version 2 layout: magic + version, fanout, then
// three parallel arrays (20-byte ids, CRC32s of the packed entry bytes,
// 4-byte offsets), a side table of 8-byte offsets for entries past
// 2^31-1, and the two trailer checksums. An offset with the high bit set
// redirects into the side table through its low 31 bits.
type packIndexV2 struct {
	fanout       [256]uint32
	names        []byte
	crcs         []byte
	offsets      []byte
	large        []byte
	packChecksum ObjectID
	idxChecksum  ObjectID
}

func parsePackIndexV2(data []byte) (*packIndexV2, error) {
	const headerLen = 8
	if len(data) < headerLen+indexFanoutLen+2*IDLength {
		return nil, fmt.Errorf("v2 index too short: %d bytes: %w", len(data), ErrCorruptObject)
	}

	sum := sha1.Sum(data[:len(data)-IDLength])
	if !bytes.Equal(sum[:], data[len(data)-IDLength:]) {
		return nil, fmt.Errorf("v2 index checksum mismatch: %w", ErrCorruptObject)
	}

	idx := new(packIndexV2)
	var err error
	if idx.fanout, err = parseFanout(data, headerLen); err != nil {
		return nil, err
	}

	n := int(idx.fanout[255])
	pos := headerLen + indexFanoutLen
	sectionEnd := len(data) - 2*IDLength

	if pos+n*(IDLength+4+4) > sectionEnd {
		return nil, fmt.Errorf("v2 index truncated: %w", ErrCorruptObject)
	}
	idx.names = data[pos : pos+n*IDLength]
	pos += n * IDLength
	idx.crcs = data[pos : pos+n*4]
	pos += n * 4
	idx.offsets = data[pos : pos+n*4]
	pos += n * 4

	// Whatever sits between the offset table and the trailers is the
	// 64-bit side table.
	largeLen := sectionEnd - pos
	if largeLen < 0 || largeLen%8 != 0 {
		return nil, fmt.Errorf("v2 index large-offset table of %d bytes: %w", largeLen, ErrCorruptObject)
	}
	idx.large = data[pos:sectionEnd]

	for i := 0; i < n; i++ {
		o32 := binary.BigEndian.Uint32(idx.offsets[i*4:])
		if o32&largeOffsetBit != 0 {
			ref := int(o32 &^ largeOffsetBit)
			if ref*8+8 > largeLen {
				return nil, fmt.Errorf("v2 index large-offset reference %d outside table: %w", ref, ErrCorruptObject)
			}
		}
	}

	copy(idx.packChecksum[:], data[sectionEnd:])
	copy(idx.idxChecksum[:], data[sectionEnd+IDLength:])
	return idx, nil
}

func (idx *packIndexV2) nameAt(i int) []byte {
	return idx.names[i*IDLength : (i+1)*IDLength]
}

func (idx *packIndexV2) offsetAt(i int) uint64 {
	o32 := binary.BigEndian.Uint32(idx.offsets[i*4:])
	if o32&largeOffsetBit == 0 {
		return uint64(o32)
	}
	ref := int(o32 &^ largeOffsetBit)
	return binary.BigEndian.Uint64(idx.large[ref*8:])
}

func (idx *packIndexV2) FindOffset(id ObjectID) int64 {
	lo, hi := fanoutRange(&idx.fanout, id[0])
	for lo < hi {
		mid := lo + (hi-lo)/2
		switch cmp := bytes.Compare(id[:], idx.nameAt(mid)); {
		case cmp < 0:
			hi = mid
		case cmp > 0:
			lo = mid + 1
		default:
			return int64(idx.offsetAt(mid))
		}
	}
	return -1
}

func (idx *packIndexV2) Has(id ObjectID) bool {
	return idx.FindOffset(id) != -1
}

func (idx *packIndexV2) ObjectCount() uint32 {
	return idx.fanout[255]
}

func (idx *packIndexV2) PackChecksum() ObjectID {
	return idx.packChecksum
}

func (idx *packIndexV2) Version() int {
	return 2
}

// CRCAt returns the CRC32 recorded for entry i in id order.
func (idx *packIndexV2) CRCAt(i int) uint32 {
	return binary.BigEndian.Uint32(idx.crcs[i*4:])
}

func (idx *packIndexV2) Iterator() *IndexIter {
	return &IndexIter{idx: idx}
}

func (idx *packIndexV2) entryAt(i int, e *IndexEntry) {
	e.ID.FromBytes(idx.names, i*IDLength)
	e.Offset = idx.offsetAt(i)
	e.CRC = idx.CRCAt(i)
}
