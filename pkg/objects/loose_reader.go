package objects

import (
	"bufio"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// Loose objects exist in two layouts. The legacy layout deflates the
// whole canonical form, header included. The packed-style layout puts an
// uncompressed entry header (type + size varint) first and deflates only
// the payload. Readers dispatch on the first two file bytes: a legacy
// file necessarily starts with a zlib stream header, which the entry
// header encoding can never produce for a valid type code.

func isZlibHeader(b0, b1 byte) bool {
	return b0&0x8f == 0x08 && (uint32(b0)<<8|uint32(b1))%31 == 0
}

// readLoose reads and verifies a loose object. Absence surfaces as
// ErrNotFound; any inconsistency between the stored bytes and id
// surfaces as ErrCorruptObject.
func (db *Database) readLoose(id ObjectID) (Type, []byte, error) {
	f, err := os.Open(db.looseObjectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, fmt.Errorf("loose object %s: %w", id, ErrNotFound)
		}
		return 0, nil, fmt.Errorf("loose object %s: %w", id, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil {
		return 0, nil, fmt.Errorf("loose object %s: truncated: %w", id, ErrCorruptObject)
	}

	var (
		t       Type
		payload []byte
	)
	if isZlibHeader(head[0], head[1]) {
		t, payload, err = readLegacyLoose(br)
	} else {
		t, payload, err = readPackedStyleLoose(br)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("loose object %s: %w", id, err)
	}

	digest := sha1.New()
	digest.Write(appendCanonicalHeader(nil, t, int64(len(payload))))
	digest.Write(payload)
	var actual ObjectID
	digest.Sum(actual[:0])
	if actual != id {
		return 0, nil, fmt.Errorf("loose object %s: recomputed id %s: %w", id, actual, ErrCorruptObject)
	}
	return t, payload, nil
}

// readLegacyLoose inflates the whole file and parses the leading
// "<type> <length>\x00" header.
func readLegacyLoose(r io.Reader) (Type, []byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return 0, nil, fmt.Errorf("inflate: %w: %v", ErrCorruptObject, err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	name, err := br.ReadString(' ')
	if err != nil || len(name) < 2 || len(name) > 7 {
		return 0, nil, fmt.Errorf("malformed header: %w", ErrCorruptObject)
	}
	t, err := TypeFromName(name[:len(name)-1])
	if err != nil {
		return 0, nil, fmt.Errorf("malformed header: %w: %v", ErrCorruptObject, err)
	}

	lenStr, err := br.ReadString(0)
	if err != nil || len(lenStr) < 2 || len(lenStr) > 20 {
		return 0, nil, fmt.Errorf("malformed header: %w", ErrCorruptObject)
	}
	length, err := strconv.ParseInt(lenStr[:len(lenStr)-1], 10, 64)
	if err != nil || length < 0 {
		return 0, nil, fmt.Errorf("malformed length: %w", ErrCorruptObject)
	}

	payload, err := readInflatedPayload(br, uint64(length))
	if err != nil {
		return 0, nil, err
	}
	return t, payload, nil
}

// readPackedStyleLoose parses the uncompressed entry header and inflates
// the remainder of the file.
func readPackedStyleLoose(br *bufio.Reader) (Type, []byte, error) {
	t, size, _, err := readEntryHeader(br)
	if err != nil {
		return 0, nil, fmt.Errorf("loose entry header: %w", err)
	}
	if !t.Valid() {
		return 0, nil, fmt.Errorf("loose entry type %d: %w", t, ErrCorruptObject)
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return 0, nil, fmt.Errorf("inflate: %w: %v", ErrCorruptObject, err)
	}
	defer zr.Close()

	payload, err := readInflatedPayload(zr, size)
	if err != nil {
		return 0, nil, err
	}
	return t, payload, nil
}

// readInflatedPayload reads exactly size inflated bytes and requires the
// stream to end there.
func readInflatedPayload(r io.Reader, size uint64) ([]byte, error) {
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("inflate payload: %w: %v", ErrCorruptObject, err)
	}
	var one [1]byte
	if n, err := r.Read(one[:]); n != 0 || (err != nil && err != io.EOF) {
		return nil, fmt.Errorf("trailing data after payload: %w", ErrCorruptObject)
	}
	return payload, nil
}

// hasLoose reports whether the loose file for id exists.
func (db *Database) hasLoose(id ObjectID) bool {
	st, err := os.Stat(db.looseObjectPath(id))
	return err == nil && !st.IsDir()
}
