package objects

import (
	"bytes"
	"fmt"
	"strconv"
)

// FileMode is the mode word recorded for a tree entry, in the canonical
// octal forms Git uses.
type FileMode uint32

const (
	ModeTree       FileMode = 0o040000
	ModeRegular    FileMode = 0o100644
	ModeExecutable FileMode = 0o100755
	ModeSymlink    FileMode = 0o120000
	ModeGitlink    FileMode = 0o160000
)

// IsTree reports whether the mode names a subtree.
func (m FileMode) IsTree() bool {
	return m&0o170000 == 0o040000
}

// String renders the mode as octal without a leading zero, the form
// used on the wire.
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

func parseFileMode(s string) (FileMode, error) {
	if len(s) == 0 || len(s) > 7 {
		return 0, fmt.Errorf("tree entry mode %q", s)
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("tree entry mode %q: %w", s, err)
	}
	return FileMode(v), nil
}

// TreeEntry is one row of a tree object.
type TreeEntry struct {
	Mode FileMode
	Name string
	ID   ObjectID
}

// compareTreeEntries orders entries the way trees are stored: names
// compare bytewise as if suffixed with '/', so a name that is a prefix
// of another sorts after it when the longer name continues with a byte
// below '/' ("a.c" precedes "a", while "a" precedes "a0") and a subtree named
// like a sibling file occupies the same slot.
func compareTreeEntries(a, b TreeEntry) int {
	an, bn := a.Name, b.Name
	n := len(an)
	if len(bn) < n {
		n = len(bn)
	}
	for i := 0; i < n; i++ {
		if an[i] != bn[i] {
			return int(an[i]) - int(bn[i])
		}
	}
	switch {
	case len(an) < len(bn):
		return int('/') - int(bn[n])
	case len(an) > len(bn):
		return int(an[n]) - int('/')
	default:
		return 0
	}
}

// MarshalTree serializes entries into the canonical wire form: repeated
// "<octal-mode> <name>\x00<20-byte id>" records. Entries must already be
// in canonical order with ids assigned; writing an unsorted tree would
// persist an object nothing could look up in later, so order is
// enforced here rather than silently repaired.
func MarshalTree(entries []TreeEntry) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range entries {
		if e.ID.IsZero() {
			return nil, fmt.Errorf("tree entry %q: %w", e.Name, ErrMissingObjectID)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("tree entry %d has empty name", i)
		}
		if i > 0 && compareTreeEntries(entries[i-1], e) >= 0 {
			return nil, fmt.Errorf("tree entry %q after %q: %w", e.Name, entries[i-1].Name, ErrUnsortedTree)
		}
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID[:])
	}
	return buf.Bytes(), nil
}

// SortTreeEntries puts entries into canonical order in place.
func SortTreeEntries(entries []TreeEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && compareTreeEntries(entries[j-1], entries[j]) > 0; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// ParseTree decodes the canonical tree wire form.
func ParseTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("tree entry missing mode terminator: %w", ErrCorruptObject)
		}
		mode, err := parseFileMode(string(data[:sp]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptObject, err)
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 || nul == 0 {
			return nil, fmt.Errorf("tree entry missing name: %w", ErrCorruptObject)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < IDLength {
			return nil, fmt.Errorf("tree entry %q truncated id: %w", name, ErrCorruptObject)
		}
		id, _ := NewObjectID(data[:IDLength])
		data = data[IDLength:]

		entries = append(entries, TreeEntry{Mode: mode, Name: name, ID: id})
	}
	return entries, nil
}

// WriteTree marshals and stores a tree, returning its id.
func (db *Database) WriteTree(entries []TreeEntry) (ObjectID, error) {
	data, err := MarshalTree(entries)
	if err != nil {
		return ZeroID, err
	}
	return db.WriteBytes(TypeTree, data)
}

// ReadTree reads id and decodes it as a tree.
func (db *Database) ReadTree(id ObjectID) ([]TreeEntry, error) {
	t, data, err := db.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if t != TypeTree {
		return nil, fmt.Errorf("object %s is a %s, not a tree", id, t.Name())
	}
	return ParseTree(data)
}
