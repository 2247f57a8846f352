// Package keychain stores and issues a wallet's asymmetric key material.
// A key chain resolves keys by their public identifiers, hands out keys
// for a requested purpose (receiving funds vs. change), and contributes
// its public identifiers to a Bloom filter so the wallet can ask an
// untrusted peer for relevant transactions without revealing its key set.
//
// The KeyChain interface deliberately excludes key import, key removal,
// and encryption control: those are capabilities of specific chain types
// (BasicChain, DeterministicChain, EncryptedChain), not of the contract,
// so that seed-derived and externally held chains can implement it too.
package keychain

import (
	"github.com/mrz1836/keychain/bloom"
	"github.com/mrz1836/keychain/keyproto"
	"github.com/mrz1836/keychain/keys"
)

// KeyPurpose is the intended role of an issued key. It drives which
// derivation branch or pool the chain consults; it carries no data.
type KeyPurpose int

// Key purposes.
const (
	// ReceiveFunds requests a key for receiving incoming payments.
	ReceiveFunds KeyPurpose = iota

	// Change requests a key for a transaction's change output.
	Change
)

// String returns the purpose name.
func (p KeyPurpose) String() string {
	switch p {
	case ReceiveFunds:
		return "receive_funds"
	case Change:
		return "change"
	default:
		return "unknown"
	}
}

// Listener is notified when a chain adds keys. A single issuance that
// mints several keys at once (for example a lookahead top-up) delivers
// them batched in one call. Listeners are compared by identity for
// removal, so register pointer-typed values.
type Listener interface {
	// OnKeysAdded receives the newly created records in creation order.
	// The slice is shared across listeners and must not be modified.
	OnKeysAdded(records []*keys.Record)
}

// KeyChain is the polymorphic contract over an arbitrary key-storage
// strategy: direct store, seed-derived, encrypted, or externally held.
//
// All implementations serialize reads and mutations per chain instance;
// a lookup never observes a key present in one index but not the other.
type KeyChain interface {
	// FindKeyFromPubHash looks up a key by the Hash160 of its public
	// key (the address form). A miss is reported as (nil, false), not
	// an error; this is the hot path of wallet scanning and must not
	// scan linearly.
	FindKeyFromPubHash(pubKeyHash []byte) (*keys.Record, bool)

	// FindKeyFromPubKey looks up a key by its raw public key bytes.
	// A miss is reported as (nil, false).
	FindKeyFromPubKey(pubKey []byte) (*keys.Record, bool)

	// HasKey reports whether the record's key is managed by this chain.
	HasKey(record *keys.Record) bool

	// GetKey returns a key appropriate for the purpose. The chain may
	// mint or derive a new key, in which case every listener is
	// notified exactly once for it. A previously exposed receive key is
	// never re-issued while a fresh one is derivable.
	GetKey(purpose KeyPurpose) (*keys.Record, error)

	// SerializeToProtobuf exports every managed key in insertion order.
	SerializeToProtobuf() []*keyproto.Key

	// NumKeys returns the number of managed keys.
	NumKeys() int

	// NumBloomFilterEntries returns how many elements this chain will
	// insert into a filter: two per key (public key and its hash), or
	// one per key for variants that omit the raw public key form.
	// Callers must size filters from this value.
	NumBloomFilterEntries() int

	// GetFilter builds a filter over a point-in-time snapshot of the
	// chain's public identifiers. size, falsePositiveRate, and tweak
	// are caller-chosen so several chains can build mergeable filters;
	// size should be at least NumBloomFilterEntries or the realized
	// false-positive rate will exceed the requested one.
	GetFilter(size int, falsePositiveRate float64, tweak uint32) (*bloom.Filter, error)

	// AddEventListener registers a listener on the default executor.
	AddEventListener(listener Listener)

	// AddEventListenerWithExecutor registers a listener whose
	// notifications run on the given executor. Registering the same
	// listener again creates an independent registration.
	AddEventListenerWithExecutor(listener Listener, executor Executor)

	// RemoveEventListener removes the most recent registration for the
	// listener and reports whether one existed.
	RemoveEventListener(listener Listener) bool
}
