package fv

import "io"

// Source is an opaque import source supplied by the caller. The custodian
// treats it as an abstract capability: it never assumes the source is a
// local file, only that a name, a size and a byte stream can be obtained.
type Source interface {
	// DisplayName returns the name the imported file should carry, or an
	// error if the name cannot be determined.
	DisplayName() (string, error)

	// Size returns the source size in bytes, or -1 if unknown.
	Size() int64

	// Open returns a reader over the source bytes. The caller closes it.
	Open() (io.ReadCloser, error)

	// Remove deletes the original after a successful import. Implementations
	// may fail when the original is not owned by this process; the custodian
	// treats the failure as non-fatal and reports it to the caller.
	Remove() error
}

// KeyValue is a durable synchronous key-value store for small binary values.
// Put must commit before returning; a value is either fully written or not
// written at all.
type KeyValue interface {
	// Put stores value under key, overwriting any prior value.
	Put(key string, value []byte) error

	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// CredentialStore persists the salted credential hash and derived settings.
type CredentialStore interface {
	// SetCredential derives and stores a fresh salted hash of secret,
	// replacing any prior credential. Empty or whitespace-only secrets are
	// rejected with ErrEmptySecret.
	SetCredential(secret string) error

	// VerifyCredential reports whether candidate matches the stored
	// credential. It returns false when no credential is set and never
	// mutates state.
	VerifyCredential(candidate string) (bool, error)

	// IsCredentialSet reports whether a credential exists.
	IsCredentialSet() (bool, error)

	// ClearCredential removes the credential and the fingerprint flag.
	ClearCredential() error

	SetFingerprintEnabled(enabled bool) error
	// IsFingerprintEnabled reports false whenever no credential is set,
	// regardless of the stored flag: biometric unlock is a backup to the
	// PIN, never primary.
	IsFingerprintEnabled() (bool, error)

	SetMetadataStrippingEnabled(enabled bool) error
	IsMetadataStrippingEnabled() (bool, error)
}
