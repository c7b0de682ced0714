package objects

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

const v1RecordLen = 4 + IDLength

// packIndexV1 is the original index format: a 256-entry fanout followed
// by N records of (4-byte offset, 20-byte id) sorted by id, then the
// pack checksum and the index checksum. Offsets are limited to 32 bits,
// so v1 cannot describe packs of 4 GiB or more.
type packIndexV1 struct {
	fanout       [256]uint32
	records      []byte
	packChecksum ObjectID
	idxChecksum  ObjectID
}

func parsePackIndexV1(data []byte) (*packIndexV1, error) {
	if len(data) < indexFanoutLen+2*IDLength {
		return nil, fmt.Errorf("v1 index too short: %d bytes: %w", len(data), ErrCorruptObject)
	}

	idx := new(packIndexV1)
	var err error
	if idx.fanout, err = parseFanout(data, 0); err != nil {
		return nil, err
	}

	n := int(idx.fanout[255])
	want := indexFanoutLen + n*v1RecordLen + 2*IDLength
	if len(data) != want {
		return nil, fmt.Errorf("v1 index with %d objects should be %d bytes, is %d: %w",
			n, want, len(data), ErrCorruptObject)
	}

	sum := sha1.Sum(data[:len(data)-IDLength])
	if !bytes.Equal(sum[:], data[len(data)-IDLength:]) {
		return nil, fmt.Errorf("v1 index checksum mismatch: %w", ErrCorruptObject)
	}

	idx.records = data[indexFanoutLen : indexFanoutLen+n*v1RecordLen]
	copy(idx.packChecksum[:], data[len(data)-2*IDLength:])
	copy(idx.idxChecksum[:], data[len(data)-IDLength:])
	return idx, nil
}

func (idx *packIndexV1) recordID(i int) []byte {
	return idx.records[i*v1RecordLen+4 : (i+1)*v1RecordLen]
}

func (idx *packIndexV1) FindOffset(id ObjectID) int64 {
	lo, hi := fanoutRange(&idx.fanout, id[0])
	for lo < hi {
		mid := lo + (hi-lo)/2
		switch cmp := bytes.Compare(id[:], idx.recordID(mid)); {
		case cmp < 0:
			hi = mid
		case cmp > 0:
			lo = mid + 1
		default:
			return int64(binary.BigEndian.Uint32(idx.records[mid*v1RecordLen:]))
		}
	}
	return -1
}

func (idx *packIndexV1) Has(id ObjectID) bool {
	return idx.FindOffset(id) != -1
}

func (idx *packIndexV1) ObjectCount() uint32 {
	return idx.fanout[255]
}

func (idx *packIndexV1) PackChecksum() ObjectID {
	return idx.packChecksum
}

func (idx *packIndexV1) Version() int {
	return 1
}

func (idx *packIndexV1) Iterator() *IndexIter {
	return &IndexIter{idx: idx}
}

func (idx *packIndexV1) entryAt(i int, e *IndexEntry) {
	e.ID.FromBytes(idx.records, i*v1RecordLen+4)
	e.Offset = uint64(binary.BigEndian.Uint32(idx.records[i*v1RecordLen:]))
	e.CRC = 0
}
