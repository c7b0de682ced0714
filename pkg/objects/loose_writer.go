package objects

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
)

// WriteObject stores one object, streaming exactly length bytes from r.
// The payload is fed through a SHA-1 digest and a zlib deflate stream in
// a single pass: the digest covers the canonical header plus payload,
// the deflate stream feeds a temp file that is renamed into place once
// the id is known. Writing an object that already exists is a no-op
// returning the same id.
func (db *Database) WriteObject(t Type, length int64, r io.Reader) (ObjectID, error) {
	if !t.Valid() {
		return ZeroID, fmt.Errorf("write object: invalid type %d", t)
	}
	if length < 0 {
		return ZeroID, fmt.Errorf("write object: negative length %d", length)
	}
	if err := os.MkdirAll(db.dir, 0o755); err != nil {
		return ZeroID, fmt.Errorf("write object: mkdir objects dir: %w", err)
	}

	tmp, err := os.CreateTemp(db.dir, ".tmp-obj-*")
	if err != nil {
		return ZeroID, fmt.Errorf("write object: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	id, err := db.writeLooseTo(tmp, t, length, r)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("write object: close temp: %w", cerr)
	}
	if err != nil {
		return ZeroID, err
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		return ZeroID, fmt.Errorf("write object: chmod temp: %w", err)
	}

	if db.Has(id) {
		// Lost the race, or a genuine duplicate. Either way the store
		// already holds these bytes.
		return id, nil
	}

	dest := db.looseObjectPath(id)
	if err := os.Rename(tmpName, dest); err != nil {
		// The fan-out directory is created lazily; try once more after
		// making it. The rename goes first because the directory most
		// likely exists already.
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return ZeroID, fmt.Errorf("write object %s: mkdir fan-out: %w", id, err)
		}
		if err := os.Rename(tmpName, dest); err != nil {
			if db.Has(id) {
				return id, nil
			}
			return ZeroID, fmt.Errorf("commit object %s: %w: %v", id, ErrWriteFailed, err)
		}
	}
	committed = true
	return id, nil
}

// writeLooseTo runs the digest+deflate pipeline into f and returns the
// resulting id. The canonical header always enters the digest; whether
// it also enters the deflate stream, or a packed-style header precedes
// the stream uncompressed, depends on the configured loose layout.
func (db *Database) writeLooseTo(f *os.File, t Type, length int64, r io.Reader) (ObjectID, error) {
	if !db.legacyHeaders {
		if _, err := f.Write(encodeEntryHeader(t, uint64(length))); err != nil {
			return ZeroID, fmt.Errorf("write object: loose header: %w", err)
		}
	}

	zw, err := zlib.NewWriterLevel(f, db.compression)
	if err != nil {
		return ZeroID, fmt.Errorf("write object: deflate level %d: %w", db.compression, err)
	}

	digest := sha1.New()
	header := appendCanonicalHeader(nil, t, length)
	digest.Write(header)
	if db.legacyHeaders {
		if _, err := zw.Write(header); err != nil {
			return ZeroID, fmt.Errorf("write object: deflate header: %w", err)
		}
	}

	if length > 0 {
		n, err := io.CopyN(io.MultiWriter(digest, zw), r, length)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ZeroID, fmt.Errorf("write object: %w: %d bytes missing", ErrShortInput, length-n)
			}
			return ZeroID, fmt.Errorf("write object: stream payload: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return ZeroID, fmt.Errorf("write object: finish deflate: %w", err)
	}

	var id ObjectID
	digest.Sum(id[:0])
	return id, nil
}

// WriteBytes stores an object whose payload is already in memory.
func (db *Database) WriteBytes(t Type, data []byte) (ObjectID, error) {
	return db.WriteObject(t, int64(len(data)), bytes.NewReader(data))
}

// WriteBlob stores raw file data as a blob.
func (db *Database) WriteBlob(data []byte) (ObjectID, error) {
	return db.WriteBytes(TypeBlob, data)
}
