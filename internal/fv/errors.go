package fv

import "errors"

// Sentinel errors for the custody and session layers. Callers branch with
// errors.Is; operational detail travels in the wrapping message.
var (
	// ErrEmptySecret indicates a credential secret that is empty or whitespace-only.
	ErrEmptySecret = errors.New("fv: secret must not be empty")

	// ErrUnlockFailed indicates an unlock attempt that did not succeed.
	// It covers both a wrong secret and a missing credential, deliberately:
	// the lock screen must not reveal whether a credential exists.
	ErrUnlockFailed = errors.New("fv: unlock failed")

	// ErrCooldownActive indicates too many failed unlock attempts; further
	// attempts are refused until the cooldown expires.
	ErrCooldownActive = errors.New("fv: unlock cooldown active")

	// ErrSourceUnreadable indicates an import source whose name or content
	// could not be read.
	ErrSourceUnreadable = errors.New("fv: source unreadable")

	// ErrUnsafeName indicates a display name that cannot be used as a file
	// name (path separators, "." or "..").
	ErrUnsafeName = errors.New("fv: unsafe file name")

	// ErrDestinationUnavailable indicates the destination directory could not
	// be created or is occupied by a non-directory.
	ErrDestinationUnavailable = errors.New("fv: destination unavailable")

	// ErrCopyFailed indicates an I/O failure while copying bytes into the vault.
	ErrCopyFailed = errors.New("fv: copy failed")

	// ErrOutsideVault indicates a path that is not rooted under the vault
	// directory. This is a security boundary violation, not an ordinary
	// I/O failure, and is logged as such.
	ErrOutsideVault = errors.New("fv: path outside vault boundary")

	// ErrMoveFailed indicates neither a rename nor the copy fallback could
	// move a file out of or within the vault.
	ErrMoveFailed = errors.New("fv: move failed")

	// ErrNotFound indicates the target path does not exist or is not a
	// regular file where one is required.
	ErrNotFound = errors.New("fv: not found")

	// ErrImportActive indicates a bulk import is already running; the
	// coordinator supports at most one job at a time.
	ErrImportActive = errors.New("fv: an import is already running")

	// ErrKeyNotFound indicates a missing key in the key-value store.
	ErrKeyNotFound = errors.New("fv: key not found")
)
