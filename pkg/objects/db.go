package objects

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultCompression is the zlib level used when none is configured:
// fast over small, matching the write-heavy access pattern.
const DefaultCompression = 1

// Options configure a Database.
type Options struct {
	// Compression is the zlib level for loose object writes, -1 through
	// 9. Zero is a valid level (store uncompressed); use
	// DefaultCompression when no explicit choice exists.
	Compression int

	// LegacyHeaders selects the legacy loose layout for writes, where
	// the whole canonical form is one deflate stream. Readers accept
	// both layouts regardless.
	LegacyHeaders bool
}

// Database is the unified object store: loose files under a fan-out
// directory plus any number of pack/index pairs under pack/. Lookups
// probe the loose layout first, then each pack index in sorted filename
// order. Packs are discovered lazily and handles live until Close or
// InvalidatePacks; an id that was once present stays present for the
// lifetime of the run.
type Database struct {
	dir           string
	compression   int
	legacyHeaders bool

	mu    sync.Mutex
	packs []*Pack
	known map[string]struct{}
}

// Open prepares a database over the given objects directory. The
// directory itself is created lazily on first write.
func Open(objectsDir string, opts Options) (*Database, error) {
	if objectsDir == "" {
		return nil, fmt.Errorf("open object database: empty objects directory")
	}
	if opts.Compression < -1 || opts.Compression > 9 {
		return nil, fmt.Errorf("open object database: compression level %d out of range", opts.Compression)
	}
	return &Database{
		dir:           objectsDir,
		compression:   opts.Compression,
		legacyHeaders: opts.LegacyHeaders,
		known:         make(map[string]struct{}),
	}, nil
}

// Dir returns the objects directory.
func (db *Database) Dir() string {
	return db.dir
}

func (db *Database) looseObjectPath(id ObjectID) string {
	hex := id.String()
	return filepath.Join(db.dir, hex[:2], hex[2:])
}

func (db *Database) packDir() string {
	return filepath.Join(db.dir, "pack")
}

// Has reports whether the store contains id in any layout.
func (db *Database) Has(id ObjectID) bool {
	if db.hasLoose(id) {
		return true
	}
	for _, p := range db.snapshotPacks(false) {
		if p.index.Has(id) {
			return true
		}
	}
	// A pack may have appeared since the last scan.
	for _, p := range db.snapshotPacks(true) {
		if p.index.Has(id) {
			return true
		}
	}
	return false
}

// ReadObject returns the type and payload for id. Absence surfaces as
// ErrNotFound; present-but-unreadable objects surface their underlying
// failure.
func (db *Database) ReadObject(id ObjectID) (Type, []byte, error) {
	t, data, err := db.readLoose(id)
	if err == nil || !isNotFound(err) {
		return t, data, err
	}

	if t, data, ok, err := db.readFromPacks(id, false); ok {
		return t, data, err
	}
	if t, data, ok, err := db.readFromPacks(id, true); ok {
		return t, data, err
	}
	return 0, nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
}

func (db *Database) readFromPacks(id ObjectID, rescan bool) (Type, []byte, bool, error) {
	for _, p := range db.snapshotPacks(rescan) {
		offset := p.index.FindOffset(id)
		if offset == -1 {
			continue
		}
		t, data, err := p.read(offset, db, make(map[int64]struct{}))
		if err != nil {
			return 0, nil, true, fmt.Errorf("object %s: %w", id, err)
		}
		return t, data, true, nil
	}
	return 0, nil, false, nil
}

// resolveBase lets packs chase REF_DELTA bases through the whole store.
func (db *Database) resolveBase(id ObjectID) (Type, []byte, error) {
	return db.ReadObject(id)
}

// snapshotPacks returns the current pack list, first rescanning the
// pack directory for new indexes when asked. Failed scans degrade to
// the packs already open.
func (db *Database) snapshotPacks(rescan bool) []*Pack {
	db.mu.Lock()
	defer db.mu.Unlock()
	if rescan {
		db.scanPacksLocked()
	}
	out := make([]*Pack, len(db.packs))
	copy(out, db.packs)
	return out
}

func (db *Database) scanPacksLocked() {
	entries, err := os.ReadDir(db.packDir())
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".idx") {
			continue
		}
		if _, seen := db.known[e.Name()]; seen {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		idxPath := filepath.Join(db.packDir(), name)
		packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
		p, err := OpenPack(packPath, idxPath)
		if err != nil {
			// Leave unreadable pairs for a later scan; a pack mid-write
			// by another process looks exactly like this.
			continue
		}
		db.known[name] = struct{}{}
		db.packs = append(db.packs, p)
	}
	sort.Slice(db.packs, func(i, j int) bool { return db.packs[i].path < db.packs[j].path })
}

// Packs returns handles for every currently discovered pack, scanning
// for new ones first.
func (db *Database) Packs() []*Pack {
	return db.snapshotPacks(true)
}

// InvalidatePacks closes every pack handle and forgets the discovery
// state, forcing a fresh scan on the next lookup. Call after removing
// pack files out from under the database.
func (db *Database) InvalidatePacks() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var firstErr error
	for _, p := range db.packs {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.packs = nil
	db.known = make(map[string]struct{})
	return firstErr
}

// Close releases all pack handles. The database must not be used after.
func (db *Database) Close() error {
	return db.InvalidatePacks()
}

// ResolvePrefix returns every object id beginning with the given hex
// prefix, across loose and packed storage, capped at limit (0 means no
// cap). Prefixes shorter than two characters are rejected: the loose
// layout cannot narrow them.
func (db *Database) ResolvePrefix(prefix string, limit int) ([]ObjectID, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) < 2 || len(prefix) > HexLength {
		return nil, fmt.Errorf("resolve %q: prefix must be 2..%d hex chars: %w", prefix, HexLength, ErrBadFormat)
	}
	if _, err := hex.DecodeString(prefix[:len(prefix)&^1]); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", prefix, ErrBadFormat)
	}

	seen := make(map[ObjectID]struct{})
	var out []ObjectID
	add := func(id ObjectID) bool {
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
		out = append(out, id)
		return limit == 0 || len(out) < limit
	}

	fanDir := filepath.Join(db.dir, prefix[:2])
	files, err := os.ReadDir(fanDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("resolve %q: %w", prefix, err)
	}
	for _, f := range files {
		if f.IsDir() || len(f.Name()) != HexLength-2 {
			continue
		}
		id, err := ParseObjectID(prefix[:2] + f.Name())
		if err != nil || !id.MatchesPrefix(prefix) {
			continue
		}
		if !add(id) {
			return out, nil
		}
	}

	for _, p := range db.snapshotPacks(true) {
		it := p.index.Iterator()
		for it.Next() {
			id := it.Entry().ID.Snapshot()
			if !id.MatchesPrefix(prefix) {
				continue
			}
			if !add(id) {
				return out, nil
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
