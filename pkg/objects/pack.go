package objects

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
)

// Pack is an open pack file with its companion index. The file handle
// is shared by concurrent readers: every read goes through a positional
// SectionReader, never through the handle's own cursor.
type Pack struct {
	path  string
	f     *os.File
	size  int64
	index PackIndex
}

// baseResolver locates REF_DELTA bases that live outside this pack.
// The owning Database implements it.
type baseResolver interface {
	resolveBase(id ObjectID) (Type, []byte, error)
}

// OpenPack opens packPath with the index at idxPath and validates the
// pack header against the index.
func OpenPack(packPath, idxPath string) (*Pack, error) {
	idx, err := OpenPackIndex(idxPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", packPath, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat pack %s: %w", packPath, err)
	}

	p := &Pack{path: packPath, f: f, size: st.Size(), index: idx}
	if err := p.checkHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pack) checkHeader() error {
	if p.size < packHeaderLen+packTrailerLen {
		return fmt.Errorf("pack %s too short: %d bytes: %w", p.path, p.size, ErrCorruptObject)
	}
	var header [packHeaderLen]byte
	if _, err := p.f.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("read pack header %s: %w", p.path, err)
	}
	if [4]byte(header[:4]) != packMagic {
		return fmt.Errorf("pack %s has bad magic %q: %w", p.path, header[:4], ErrCorruptObject)
	}
	if version := binary.BigEndian.Uint32(header[4:8]); version != supportedPackFormat {
		return fmt.Errorf("pack %s version %d: %w", p.path, version, ErrUnsupportedVersion)
	}
	if count := binary.BigEndian.Uint32(header[8:12]); count != p.index.ObjectCount() {
		return fmt.Errorf("pack %s holds %d objects but index lists %d: %w",
			p.path, count, p.index.ObjectCount(), ErrCorruptObject)
	}
	return nil
}

// Index returns the pack's index.
func (p *Pack) Index() PackIndex {
	return p.index
}

// Close releases the underlying file handle.
func (p *Pack) Close() error {
	return p.f.Close()
}

// Read decodes the object stored at offset, resolving delta chains
// confined to this pack. REF_DELTA bases outside the pack fail with
// ErrMissingDeltaBase; use Database reads for cross-pack resolution.
func (p *Pack) Read(offset int64) (Type, []byte, error) {
	return p.read(offset, nil, make(map[int64]struct{}))
}

func (p *Pack) read(offset int64, resolver baseResolver, visited map[int64]struct{}) (Type, []byte, error) {
	if offset < packHeaderLen || offset >= p.size-packTrailerLen {
		return 0, nil, fmt.Errorf("pack %s: offset %d outside object region: %w", p.path, offset, ErrCorruptObject)
	}
	if _, seen := visited[offset]; seen {
		return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, ErrCircularDelta)
	}
	visited[offset] = struct{}{}

	br := bufio.NewReader(io.NewSectionReader(p.f, offset, p.size-packTrailerLen-offset))
	t, size, _, err := readEntryHeader(br)
	if err != nil {
		return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
	}

	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag:
		payload, err := inflateEntry(br, size)
		if err != nil {
			return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
		}
		return t, payload, nil

	case typeOfsDelta:
		distance, err := readOfsDistance(br)
		if err != nil {
			return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
		}
		if distance == 0 || distance > uint64(offset) {
			return 0, nil, fmt.Errorf("pack %s: offset %d: delta distance %d: %w",
				p.path, offset, distance, ErrCorruptObject)
		}
		delta, err := inflateEntry(br, size)
		if err != nil {
			return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
		}
		baseType, base, err := p.read(offset-int64(distance), resolver, visited)
		if err != nil {
			return 0, nil, err
		}
		return p.applyEntryDelta(offset, baseType, base, delta)

	case typeRefDelta:
		var baseID ObjectID
		if _, err := io.ReadFull(br, baseID[:]); err != nil {
			return 0, nil, fmt.Errorf("pack %s: offset %d: base id: %w", p.path, offset, ErrCorruptObject)
		}
		delta, err := inflateEntry(br, size)
		if err != nil {
			return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
		}
		baseType, base, err := p.readBase(baseID, resolver, visited)
		if err != nil {
			return 0, nil, err
		}
		return p.applyEntryDelta(offset, baseType, base, delta)

	default:
		return 0, nil, fmt.Errorf("pack %s: offset %d: entry type %d: %w", p.path, offset, t, ErrCorruptObject)
	}
}

// readBase resolves a REF_DELTA base, preferring this pack so in-pack
// chains keep their cycle detection, and falling back to the resolver
// for bases stored elsewhere.
func (p *Pack) readBase(baseID ObjectID, resolver baseResolver, visited map[int64]struct{}) (Type, []byte, error) {
	if off := p.index.FindOffset(baseID); off != -1 {
		return p.read(off, resolver, visited)
	}
	if resolver != nil {
		t, data, err := resolver.resolveBase(baseID)
		if err == nil {
			return t, data, nil
		}
		if !isNotFound(err) {
			return 0, nil, err
		}
	}
	return 0, nil, fmt.Errorf("pack %s: base %s: %w", p.path, baseID, ErrMissingDeltaBase)
}

func (p *Pack) applyEntryDelta(offset int64, baseType Type, base, delta []byte) (Type, []byte, error) {
	result, err := applyDelta(base, delta)
	if err != nil {
		return 0, nil, fmt.Errorf("pack %s: offset %d: %w", p.path, offset, err)
	}
	return baseType, result, nil
}

// inflateEntry reads a zlib stream producing exactly size bytes.
func inflateEntry(r io.Reader, size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("inflate entry: %w: %v", ErrCorruptObject, err)
	}
	defer zr.Close()
	payload := make([]byte, size)
	if _, err := io.ReadFull(zr, payload); err != nil {
		return nil, fmt.Errorf("inflate entry: %w: %v", ErrCorruptObject, err)
	}
	var one [1]byte
	if n, err := zr.Read(one[:]); n != 0 || (err != nil && err != io.EOF) {
		return nil, fmt.Errorf("entry longer than declared: %w", ErrCorruptObject)
	}
	return payload, nil
}
