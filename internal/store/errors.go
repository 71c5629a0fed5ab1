package store

import "errors"

// Sentinel errors identifying the failure classes the feed store can
// surface. Callers should match on these with errors.Is rather than on
// the wrapped message text.
var (
	// ErrStorageOpen indicates the underlying database could not be opened.
	ErrStorageOpen = errors.New("store: storage open failed")

	// ErrStorageIO indicates a read, write or flush failed at the storage layer.
	ErrStorageIO = errors.New("store: storage io failed")

	// ErrSerialization indicates encoding or decoding a persisted record failed.
	ErrSerialization = errors.New("store: serialization failed")

	// ErrInvalidSequence indicates an append was attempted with a sequence
	// number other than the author's current latest plus one.
	ErrInvalidSequence = errors.New("store: invalid sequence")

	// ErrStorageCorruption indicates an invariant-violating absence was
	// observed, e.g. a msg_val reference pointing at a missing KVT.
	ErrStorageCorruption = errors.New("store: storage corruption")

	// ErrIndexFailure indicates the secondary-index collaborator rejected
	// a committed message.
	ErrIndexFailure = errors.New("store: index failure")
)
