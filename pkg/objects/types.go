package objects

import (
	"fmt"
	"strconv"
)

// Type is the object kind code used in pack entry headers and the
// packed-style loose header. Values match the canonical Git encoding.
type Type uint8

const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	TypeTag    Type = 4

	// Delta kinds appear only inside pack files; they are storage
	// representations, not object kinds of their own.
	typeOfsDelta Type = 6
	typeRefDelta Type = 7
)

var typeNames = map[Type]string{
	TypeCommit: "commit",
	TypeTree:   "tree",
	TypeBlob:   "blob",
	TypeTag:    "tag",
}

// Name returns the canonical type name used in object headers.
func (t Type) Name() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("invalid-%d", uint8(t))
}

// Valid reports whether t is one of the four storable object kinds.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// TypeFromName maps a canonical type name back to its code.
func TypeFromName(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", name)
}

// appendCanonicalHeader appends "<type> <length>\x00", the form every
// object id is computed over regardless of storage layout.
func appendCanonicalHeader(dst []byte, t Type, length int64) []byte {
	dst = append(dst, t.Name()...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, length, 10)
	return append(dst, 0)
}
