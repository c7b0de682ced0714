package objects

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	packHeaderLen       = 12
	packTrailerLen      = IDLength
	supportedPackFormat = 2
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

type countedWriter struct {
	w io.Writer
	n uint64
}

func (cw *countedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// PackWriter emits a pack stream: 12-byte header, one variable-header
// entry per object with zlib-compressed payload, and a SHA-1 trailer
// over everything before it. Each write returns the PackIndexEntry an
// index writer needs, CRC included.
type PackWriter struct {
	hasher   hash.Hash
	counter  *countedWriter
	dst      io.Writer
	level    int
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter writes the pack header and returns a writer expecting
// exactly numObjects entries. Compression runs at the given zlib level.
func NewPackWriter(out io.Writer, numObjects uint32, level int) (*PackWriter, error) {
	hasher := sha1.New()
	counter := &countedWriter{w: out}
	pw := &PackWriter{
		hasher:   hasher,
		counter:  counter,
		dst:      io.MultiWriter(counter, hasher),
		level:    level,
		expected: numObjects,
	}

	var header [packHeaderLen]byte
	copy(header[:4], packMagic[:])
	binary.BigEndian.PutUint32(header[4:8], supportedPackFormat)
	binary.BigEndian.PutUint32(header[8:12], numObjects)
	if _, err := pw.dst.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the offset the next entry will start at.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.n
}

func (p *PackWriter) deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, p.level)
	if err != nil {
		return nil, fmt.Errorf("deflate level %d: %w", p.level, err)
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *PackWriter) beginEntry() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

func (p *PackWriter) writeEntryBytes(id ObjectID, chunks ...[]byte) (PackIndexEntry, error) {
	entry := PackIndexEntry{ID: id, Offset: p.CurrentOffset()}
	crc := crc32.NewIEEE()
	dst := io.MultiWriter(p.dst, crc)
	for _, chunk := range chunks {
		if _, err := dst.Write(chunk); err != nil {
			return PackIndexEntry{}, fmt.Errorf("write pack entry: %w", err)
		}
	}
	entry.CRC = crc.Sum32()
	p.written++
	return entry, nil
}

// WriteEntry appends one non-delta object with the given payload.
func (p *PackWriter) WriteEntry(id ObjectID, t Type, payload []byte) (PackIndexEntry, error) {
	if err := p.beginEntry(); err != nil {
		return PackIndexEntry{}, err
	}
	if !t.Valid() {
		return PackIndexEntry{}, fmt.Errorf("pack entry type %d is not storable", t)
	}
	compressed, err := p.deflate(payload)
	if err != nil {
		return PackIndexEntry{}, fmt.Errorf("compress pack entry: %w", err)
	}
	return p.writeEntryBytes(id, encodeEntryHeader(t, uint64(len(payload))), compressed)
}

// WriteOfsDelta appends an OFS_DELTA entry against the object written
// earlier at baseOffset, using an insert-only delta stream.
func (p *PackWriter) WriteOfsDelta(id ObjectID, baseOffset uint64, base, target []byte) (PackIndexEntry, error) {
	if err := p.beginEntry(); err != nil {
		return PackIndexEntry{}, err
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return PackIndexEntry{}, fmt.Errorf("delta base offset %d not before entry offset %d", baseOffset, current)
	}

	delta := buildInsertDelta(base, target)
	compressed, err := p.deflate(delta)
	if err != nil {
		return PackIndexEntry{}, fmt.Errorf("compress delta payload: %w", err)
	}
	return p.writeEntryBytes(id,
		encodeEntryHeader(typeOfsDelta, uint64(len(delta))),
		encodeOfsDistance(current-baseOffset),
		compressed)
}

// WriteRefDelta appends a REF_DELTA entry naming its base by id.
func (p *PackWriter) WriteRefDelta(id, baseID ObjectID, base, target []byte) (PackIndexEntry, error) {
	if err := p.beginEntry(); err != nil {
		return PackIndexEntry{}, err
	}
	delta := buildInsertDelta(base, target)
	compressed, err := p.deflate(delta)
	if err != nil {
		return PackIndexEntry{}, fmt.Errorf("compress delta payload: %w", err)
	}
	return p.writeEntryBytes(id,
		encodeEntryHeader(typeRefDelta, uint64(len(delta))),
		baseID[:],
		compressed)
}

// Finish validates the object count and writes the trailer checksum,
// returning it for the companion index.
func (p *PackWriter) Finish() (ObjectID, error) {
	if p.finished {
		return ZeroID, fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return ZeroID, fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}
	var sum ObjectID
	p.hasher.Sum(sum[:0])
	if _, err := p.counter.w.Write(sum[:]); err != nil {
		return ZeroID, fmt.Errorf("write pack trailer: %w", err)
	}
	p.finished = true
	return sum, nil
}
