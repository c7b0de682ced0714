package objects

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// tocMagic announces a versioned index file. Version 1 indexes have no
// header at all; their first eight bytes are fanout counts, which can
// never start with 0xff because that would imply more than 2^31 objects
// with first byte zero.
var tocMagic = [4]byte{0xff, 't', 'O', 'c'}

const (
	indexFanoutLen = 256 * 4
	largeOffsetBit = uint32(1) << 31
)

// PackIndex maps object ids to byte offsets within one pack file.
// Implementations are safe for concurrent readers: they hold the parsed
// file in memory and never mutate it.
type PackIndex interface {
	// FindOffset returns the pack offset for id, or -1 if the pack does
	// not contain it.
	FindOffset(id ObjectID) int64

	// Has is a convenience wrapper over FindOffset.
	Has(id ObjectID) bool

	// ObjectCount returns the number of objects in the index, which is
	// also fanout[255].
	ObjectCount() uint32

	// Iterator iterates entries in ascending id order.
	Iterator() *IndexIter

	// PackChecksum returns the checksum of the pack this index covers.
	PackChecksum() ObjectID

	// Version reports the on-disk index format, 1 or 2.
	Version() int

	// entryAt refills e with entry i in id order.
	entryAt(i int, e *IndexEntry)
}

// OpenPackIndex reads and parses an index file. The format is detected
// from the first eight bytes; unknown versioned formats fail with
// ErrUnsupportedVersion.
func OpenPackIndex(path string) (PackIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unreadable pack index %s: %w", path, err)
	}
	idx, err := parsePackIndex(data)
	if err != nil {
		return nil, fmt.Errorf("unreadable pack index %s: %w", path, err)
	}
	return idx, nil
}

// ReadPackIndexFrom parses an index from a stream.
func ReadPackIndexFrom(r io.Reader) (PackIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack index stream: %w", err)
	}
	return parsePackIndex(data)
}

func parsePackIndex(data []byte) (PackIndex, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("pack index too short: %d bytes: %w", len(data), ErrCorruptObject)
	}
	if [4]byte(data[:4]) == tocMagic {
		version := binary.BigEndian.Uint32(data[4:8])
		if version != 2 {
			return nil, fmt.Errorf("pack index version %d: %w", version, ErrUnsupportedVersion)
		}
		return parsePackIndexV2(data)
	}
	return parsePackIndexV1(data)
}

// parseFanout reads the 256 cumulative counts starting at data[pos] and
// checks monotonicity.
func parseFanout(data []byte, pos int) ([256]uint32, error) {
	var fanout [256]uint32
	for i := 0; i < 256; i++ {
		fanout[i] = binary.BigEndian.Uint32(data[pos+i*4:])
		if i > 0 && fanout[i] < fanout[i-1] {
			return fanout, fmt.Errorf("fanout not monotonic at byte %d: %w", i, ErrCorruptObject)
		}
	}
	return fanout, nil
}

// fanoutRange returns the [lo, hi) entry range holding ids whose first
// byte equals b.
func fanoutRange(fanout *[256]uint32, b byte) (int, int) {
	lo := 0
	if b > 0 {
		lo = int(fanout[b-1])
	}
	return lo, int(fanout[b])
}

// IndexEntry is the reused element yielded by IndexIter. Its fields are
// refreshed on every Next; copy the value (or Snapshot the id) to retain
// it past the step that produced it.
type IndexEntry struct {
	ID     MutableObjectID
	Offset uint64
	CRC    uint32 // zero for version 1 indexes, which carry no CRCs
}

// Snapshot returns a copy unaffected by further iteration.
func (e *IndexEntry) Snapshot() IndexEntry {
	return *e
}

// IndexIter walks a pack index in ascending id order. The same
// IndexEntry is handed back on every step for allocation-free scans.
type IndexIter struct {
	idx   PackIndex
	next  int
	entry IndexEntry
}

// Next advances the iterator, returning false once all entries have
// been yielded.
func (it *IndexIter) Next() bool {
	if it.next >= int(it.idx.ObjectCount()) {
		return false
	}
	it.idx.entryAt(it.next, &it.entry)
	it.next++
	return true
}

// Entry returns the current entry. The pointer stays valid but its
// contents change on the following Next.
func (it *IndexIter) Entry() *IndexEntry {
	return &it.entry
}
