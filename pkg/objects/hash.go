package objects

import "crypto/sha1"

// HashObject computes the id an object of the given type and payload
// would be stored under, without touching the store: the SHA-1 of
// "<type> <length>\x00" followed by the payload.
func HashObject(t Type, payload []byte) ObjectID {
	digest := sha1.New()
	digest.Write(appendCanonicalHeader(nil, t, int64(len(payload))))
	digest.Write(payload)
	var id ObjectID
	digest.Sum(id[:0])
	return id
}
