package forge

import "errors"

// Error kinds FORGE returns from its non-verification paths.
// Verification paths return structured results instead of these (see
// ChainVerification, Divergence) — these sentinels cover the paths that
// genuinely fail: malformed input, unsealed lookups, store corruption,
// and out-of-range access.
var (
	// ErrInvalidHash is returned when an input that must be a 64-character
	// hex SHA-256 digest is not.
	ErrInvalidHash = errors.New("forge: invalid hash: expected 64 hex characters")

	// ErrNotSealed is returned by Chain.ProveAtom when the requested atom
	// index has not yet been covered by any sealed block.
	ErrNotSealed = errors.New("forge: atom not covered by any sealed block")

	// ErrStoreCorruption is returned by OpenFileStore when persisted JSON
	// fails to parse; the store still recovers by initialising to an
	// empty state and is safe to use despite the error.
	ErrStoreCorruption = errors.New("forge: store data is corrupt, reinitialising")

	// ErrOutOfRange is returned by Store atom/block accessors when an
	// index falls outside the stored range.
	ErrOutOfRange = errors.New("forge: index out of range")
)
