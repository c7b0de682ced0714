package objects

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	// IDLength is the byte length of an object identifier (SHA-1).
	IDLength = 20

	// HexLength is the character length of a fully spelled out identifier.
	HexLength = IDLength * 2
)

// ObjectID is the SHA-1 of an object's canonical form: the header
// "<type> <length>\x00" followed by the payload. The zero value is the
// all-zero id, which never names a real object.
type ObjectID [IDLength]byte

// ZeroID is the all-zero identifier.
var ZeroID ObjectID

// NewObjectID constructs an ObjectID from exactly IDLength raw bytes.
func NewObjectID(raw []byte) (ObjectID, error) {
	var id ObjectID
	if len(raw) != IDLength {
		return id, fmt.Errorf("object id must be %d bytes, got %d: %w", IDLength, len(raw), ErrBadFormat)
	}
	copy(id[:], raw)
	return id, nil
}

// ParseObjectID parses a 40-character lowercase or uppercase hex string.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != HexLength {
		return id, fmt.Errorf("object id must be %d hex chars, got %d: %w", HexLength, len(s), ErrBadFormat)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id %q: %w", s, ErrBadFormat)
	}
	return id, nil
}

// String renders the identifier as 40 lowercase hex characters.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is the all-zero id.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Compare orders identifiers lexicographically over the unsigned byte
// sequence. It returns -1, 0, or 1.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id[:], other[:])
}

// CopyTo writes the raw identifier bytes into dst, which must have room
// for IDLength bytes.
func (id ObjectID) CopyTo(dst []byte) {
	copy(dst, id[:])
}

// MatchesPrefix reports whether the identifier begins with the given hex
// prefix. Odd-length prefixes match on the high nibble of the final
// byte. An invalid or over-long prefix matches nothing.
func (id ObjectID) MatchesPrefix(prefix string) bool {
	if len(prefix) > HexLength {
		return false
	}
	full := id.String()
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c >= 'A' && c <= 'F' {
			c += 'a' - 'A'
		}
		if full[i] != c {
			return false
		}
	}
	return true
}

// MutableObjectID carries the same 20 bytes as ObjectID but permits
// in-place refill, letting hot loops reuse one value instead of
// allocating per element. It must not be used as a map key while still
// subject to refill; take a Snapshot first.
type MutableObjectID struct {
	raw [IDLength]byte
}

// FromBytes refills the identifier from src starting at offset.
func (m *MutableObjectID) FromBytes(src []byte, offset int) {
	copy(m.raw[:], src[offset:offset+IDLength])
}

// FromObjectID refills the identifier from an immutable id.
func (m *MutableObjectID) FromObjectID(id ObjectID) {
	m.raw = id
}

// Snapshot returns an immutable copy of the current bytes.
func (m *MutableObjectID) Snapshot() ObjectID {
	return ObjectID(m.raw)
}

// Equal reports whether the current bytes match id.
func (m *MutableObjectID) Equal(id ObjectID) bool {
	return m.raw == [IDLength]byte(id)
}

// String renders the current bytes as 40 lowercase hex characters.
func (m *MutableObjectID) String() string {
	return hex.EncodeToString(m.raw[:])
}
