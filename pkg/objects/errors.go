package objects

import "errors"

// Sentinel errors for the failure classes the store distinguishes.
// Call sites wrap these with fmt.Errorf("context: %w", ...) so callers
// can probe with errors.Is while still seeing what operation failed.
var (
	// ErrNotFound reports that no object with the requested id exists in
	// any storage layout. Lookup APIs surface absence through this value
	// rather than through a filesystem error.
	ErrNotFound = errors.New("object not found")

	// ErrBadFormat reports malformed identifier input.
	ErrBadFormat = errors.New("bad object id format")

	// ErrCorruptObject reports a stored object whose recomputed id,
	// header, or compressed stream is inconsistent.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrUnsupportedVersion reports a pack or index file in a version
	// this implementation does not understand.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrUnsortedTree reports tree entries not in canonical order.
	ErrUnsortedTree = errors.New("tree entries not sorted")

	// ErrMissingObjectID reports a tree entry without an assigned id, a
	// commit without a tree id, or a tag without a target id.
	ErrMissingObjectID = errors.New("required object id missing")

	// ErrShortInput reports a stream that ended before the declared
	// object length was reached.
	ErrShortInput = errors.New("input shorter than declared length")

	// ErrWriteFailed reports an object commit whose rename could not be
	// completed and whose id is still absent after recovery.
	ErrWriteFailed = errors.New("object write failed")

	// ErrCircularDelta reports a delta chain that revisits an offset.
	ErrCircularDelta = errors.New("circular delta chain")

	// ErrMissingDeltaBase reports a ref-delta whose base object cannot
	// be resolved.
	ErrMissingDeltaBase = errors.New("delta base missing")
)
