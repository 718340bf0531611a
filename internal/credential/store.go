// Package credential implements the PIN credential store. The secret is
// never persisted or compared in plaintext: a PBKDF2-HMAC-SHA256 key derived
// from a fresh random salt is stored instead, and verification recomputes
// and compares it in constant time.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"fv-go/internal/fv"
)

const (
	// SaltLength is the salt size in bytes (128-bit).
	SaltLength = 16

	// KeyLength is the derived key size in bytes (256-bit).
	KeyLength = 32

	// Iterations is the PBKDF2 iteration count. Deliberately slow: key
	// derivation takes tens of milliseconds and must run off the
	// interactive path.
	Iterations = 120_000
)

// Store keys in the key-value store.
const (
	recordKey        = "credential.record"
	fingerprintKey   = "settings.fingerprint_enabled"
	stripMetadataKey = "settings.strip_metadata"
)

// Store persists the credential record and derived settings through a
// durable key-value store.
type Store struct {
	kv     fv.KeyValue
	logger fv.Logger
}

// NewStore creates a credential store over kv.
func NewStore(kv fv.KeyValue, logger fv.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// record is the stored credential: iteration count, salt and derived key,
// encoded as one blob so the pair is written atomically.
type record struct {
	iterations uint32
	salt       []byte
	key        []byte
}

func (r *record) encode() []byte {
	buf := make([]byte, 4+SaltLength+KeyLength)
	binary.BigEndian.PutUint32(buf[:4], r.iterations)
	copy(buf[4:4+SaltLength], r.salt)
	copy(buf[4+SaltLength:], r.key)
	return buf
}

func decodeRecord(raw []byte) (*record, error) {
	if len(raw) != 4+SaltLength+KeyLength {
		return nil, fmt.Errorf("credential record has %d bytes, want %d", len(raw), 4+SaltLength+KeyLength)
	}
	return &record{
		iterations: binary.BigEndian.Uint32(raw[:4]),
		salt:       raw[4 : 4+SaltLength],
		key:        raw[4+SaltLength:],
	}, nil
}

// SetCredential derives and stores a fresh salted key for secret, replacing
// any prior credential wholesale. The salt is newly generated on every call,
// never reused. Empty or whitespace-only secrets are rejected.
func (s *Store) SetCredential(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fv.ErrEmptySecret
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	rec := &record{
		iterations: Iterations,
		salt:       salt,
		key:        pbkdf2.Key([]byte(secret), salt, Iterations, KeyLength, sha256.New),
	}
	if err := s.kv.Put(recordKey, rec.encode()); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	s.logger.Info("credential set")
	return nil
}

// VerifyCredential recomputes the derived key from candidate and the stored
// salt and compares it against the stored key in constant time. It returns
// false when no credential is set and never mutates state.
func (s *Store) VerifyCredential(candidate string) (bool, error) {
	raw, err := s.kv.Get(recordKey)
	if err != nil {
		if errors.Is(err, fv.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading credential: %w", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return false, fmt.Errorf("decoding credential: %w", err)
	}

	derived := pbkdf2.Key([]byte(candidate), rec.salt, int(rec.iterations), KeyLength, sha256.New)
	return subtle.ConstantTimeCompare(derived, rec.key) == 1, nil
}

// IsCredentialSet reports whether a credential exists.
func (s *Store) IsCredentialSet() (bool, error) {
	_, err := s.kv.Get(recordKey)
	if err != nil {
		if errors.Is(err, fv.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading credential: %w", err)
	}
	return true, nil
}

// ClearCredential removes the credential record and the fingerprint flag.
// The fingerprint flag goes with it: biometric unlock is a backup to the
// PIN and is meaningless without one.
func (s *Store) ClearCredential() error {
	if err := s.kv.Delete(recordKey); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if err := s.kv.Delete(fingerprintKey); err != nil {
		return fmt.Errorf("deleting fingerprint flag: %w", err)
	}
	s.logger.Info("credential cleared")
	return nil
}

func (s *Store) SetFingerprintEnabled(enabled bool) error {
	return s.putFlag(fingerprintKey, enabled)
}

// IsFingerprintEnabled reports false whenever no credential is set,
// regardless of the stored flag.
func (s *Store) IsFingerprintEnabled() (bool, error) {
	set, err := s.IsCredentialSet()
	if err != nil || !set {
		return false, err
	}
	return s.getFlag(fingerprintKey)
}

func (s *Store) SetMetadataStrippingEnabled(enabled bool) error {
	return s.putFlag(stripMetadataKey, enabled)
}

func (s *Store) IsMetadataStrippingEnabled() (bool, error) {
	return s.getFlag(stripMetadataKey)
}

func (s *Store) putFlag(key string, enabled bool) error {
	value := []byte{0}
	if enabled {
		value[0] = 1
	}
	if err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (s *Store) getFlag(key string) (bool, error) {
	raw, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, fv.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

// Compile-time check that Store implements fv.CredentialStore.
var _ fv.CredentialStore = (*Store)(nil)
