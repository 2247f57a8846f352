// Package keys defines the key record managed by a key chain: the cached
// public identifiers of a single keypair plus an opaque handle to its
// private material. Private key bytes are never read or exported here;
// signing and verification belong to the handle's owner.
package keys

import (
	"bytes"
	"strconv"
	"time"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

const (
	// CompressedPubKeyLen is the length of a compressed SEC1 public key.
	CompressedPubKeyLen = 33

	// PubKeyHashLen is the length of the Hash160 address-form identifier.
	PubKeyHashLen = 20
)

// PrivateHandle is an opaque reference to private key material. The
// concrete chain that issued the key owns the handle exclusively; this
// package only asks it for the public key.
type PrivateHandle interface {
	// PublicKeyBytes returns the compressed public key for the handle.
	// The returned slice must be stable for the life of the handle.
	PublicKeyBytes() []byte
}

// Record is one managed key: the raw public key, its Hash160 address
// form, and the opaque private handle. Both public forms are derived
// from the handle at construction and cached; they never change.
type Record struct {
	pubKey     []byte
	pubKeyHash []byte
	createdAt  time.Time
	handle     PrivateHandle
}

// NewRecord derives the cached public forms from the handle and builds
// a record. It fails if the handle yields no usable public key.
func NewRecord(handle PrivateHandle) (*Record, error) {
	if handle == nil {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidKey,
			"a record requires a non-nil private handle")
	}
	pub := handle.PublicKeyBytes()
	if len(pub) != CompressedPubKeyLen {
		return nil, kcerrors.WithDetails(kcerrors.ErrInvalidKey, map[string]string{
			"pubkey_len": strconv.Itoa(len(pub)),
		})
	}

	pubKey := make([]byte, len(pub))
	copy(pubKey, pub)

	return &Record{
		pubKey:     pubKey,
		pubKeyHash: Hash160(pubKey),
		createdAt:  time.Now().UTC(),
		handle:     handle,
	}, nil
}

// PubKey returns the compressed public key bytes. Callers must treat the
// returned slice as read-only; it is the record's cached copy and is
// shared to keep per-output wallet scanning allocation-free.
func (r *Record) PubKey() []byte {
	return r.pubKey
}

// PubKeyHash returns the Hash160 of the public key (the address form).
// Callers must treat the returned slice as read-only.
func (r *Record) PubKeyHash() []byte {
	return r.pubKeyHash
}

// CreatedAt returns the record creation time (UTC).
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// Handle returns the opaque private handle. The handle exposes nothing
// beyond the public key; its private capabilities belong to the chain
// that created it.
func (r *Record) Handle() PrivateHandle {
	return r.handle
}

// EqualPub reports whether two records carry the same public key.
func (r *Record) EqualPub(other *Record) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(r.pubKey, other.pubKey)
}
