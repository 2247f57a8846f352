package keychain

import (
	"bytes"
	"io"
	"sync"

	"filippo.io/age"

	"github.com/mrz1836/keychain/bloom"
	"github.com/mrz1836/keychain/keyproto"
	"github.com/mrz1836/keychain/keys"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// EncryptedChain is a deterministic chain whose seed is held as
// passphrase-encrypted ciphertext while the chain is locked. Lookups,
// counting, serialization, and filter generation keep working on the
// cached public forms; issuing beyond the pre-derived pool requires
// unlocking first and fails with ChainLocked otherwise.
type EncryptedChain struct {
	// lockMu serializes Lock/Unlock transitions. Key operations are
	// guarded by the inner chain's own lock.
	lockMu     sync.Mutex
	inner      *DeterministicChain
	ciphertext []byte
}

var _ KeyChain = (*EncryptedChain)(nil)

// NewEncryptedChain seals a deterministic chain under the passphrase.
// The chain starts locked: its live seed and branch private nodes are
// destroyed and only the age ciphertext of the seed remains. The inner
// chain must not be used directly afterwards.
func NewEncryptedChain(inner *DeterministicChain, passphrase string) (*EncryptedChain, error) {
	if inner == nil {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidInput,
			"an encrypted chain requires an inner deterministic chain")
	}
	if passphrase == "" {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidInput,
			"passphrase must not be empty")
	}

	seed := inner.seedBytes()
	if seed == nil {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidKey,
			"inner chain has no live seed to encrypt")
	}

	ciphertext, err := encryptSeed(seed, passphrase)
	if err != nil {
		return nil, err
	}

	inner.lock()
	return &EncryptedChain{
		inner:      inner,
		ciphertext: ciphertext,
	}, nil
}

// encryptSeed encrypts the seed with an age scrypt recipient.
func encryptSeed(seed []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, kcerrors.Wrap(err, "creating scrypt recipient")
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, kcerrors.Wrap(err, "encrypting seed")
	}
	if _, err := w.Write(seed); err != nil {
		return nil, kcerrors.Wrap(err, "encrypting seed")
	}
	if err := w.Close(); err != nil {
		return nil, kcerrors.Wrap(err, "encrypting seed")
	}
	return buf.Bytes(), nil
}

// decryptSeed decrypts the seed ciphertext with the passphrase.
func decryptSeed(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, kcerrors.Wrap(err, "creating scrypt identity")
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, kcerrors.WithDetails(kcerrors.ErrDecryptionFailed, map[string]string{
			"cause": err.Error(),
		})
	}
	seed, err := io.ReadAll(r)
	if err != nil {
		return nil, kcerrors.WithDetails(kcerrors.ErrDecryptionFailed, map[string]string{
			"cause": err.Error(),
		})
	}
	return seed, nil
}

// IsLocked reports whether issuance currently requires unlocking.
func (c *EncryptedChain) IsLocked() bool {
	c.inner.mu.RLock()
	defer c.inner.mu.RUnlock()
	return c.inner.locked
}

// Unlock decrypts the seed and restores the chain's ability to derive
// new keys. A wrong passphrase fails with DecryptionFailed and changes
// nothing. Unlocking an unlocked chain is a no-op.
func (c *EncryptedChain) Unlock(passphrase string) error {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	if !c.IsLocked() {
		return nil
	}

	seed, err := decryptSeed(c.ciphertext, passphrase)
	if err != nil {
		return err
	}
	defer zeroBytes(seed)

	return c.inner.unlockWithSeed(seed)
}

// Lock destroys the live seed and branch private nodes again. The
// pre-derived pool and all public material stay available.
func (c *EncryptedChain) Lock() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.inner.lock()
}

// FindKeyFromPubHash looks up a key by its Hash160 address form. Works
// locked or unlocked.
func (c *EncryptedChain) FindKeyFromPubHash(pubKeyHash []byte) (*keys.Record, bool) {
	return c.inner.FindKeyFromPubHash(pubKeyHash)
}

// FindKeyFromPubKey looks up a key by its raw public key bytes.
func (c *EncryptedChain) FindKeyFromPubKey(pubKey []byte) (*keys.Record, bool) {
	return c.inner.FindKeyFromPubKey(pubKey)
}

// HasKey reports whether the record's key is in the chain.
func (c *EncryptedChain) HasKey(record *keys.Record) bool {
	return c.inner.HasKey(record)
}

// GetKey issues the next unused key for the purpose. While locked it
// serves only the pre-derived pool; once that is exhausted the call
// fails with ChainLocked rather than stalling.
func (c *EncryptedChain) GetKey(purpose KeyPurpose) (*keys.Record, error) {
	return c.inner.GetKey(purpose)
}

// SerializeToProtobuf exports the chain's keys in insertion order. The
// export carries only public forms and derivation locations, so it is
// available while locked.
func (c *EncryptedChain) SerializeToProtobuf() []*keyproto.Key {
	return c.inner.SerializeToProtobuf()
}

// NumKeys returns the number of derived keys.
func (c *EncryptedChain) NumKeys() int {
	return c.inner.NumKeys()
}

// NumBloomFilterEntries returns 2*NumKeys.
func (c *EncryptedChain) NumBloomFilterEntries() int {
	return c.inner.NumBloomFilterEntries()
}

// GetFilter builds a filter over the chain's public identifiers. Works
// locked or unlocked.
func (c *EncryptedChain) GetFilter(size int, falsePositiveRate float64, tweak uint32) (*bloom.Filter, error) {
	return c.inner.GetFilter(size, falsePositiveRate, tweak)
}

// AddEventListener registers a listener on the default executor.
func (c *EncryptedChain) AddEventListener(listener Listener) {
	c.inner.AddEventListener(listener)
}

// AddEventListenerWithExecutor registers a listener on the given
// executor.
func (c *EncryptedChain) AddEventListenerWithExecutor(listener Listener, executor Executor) {
	c.inner.AddEventListenerWithExecutor(listener, executor)
}

// RemoveEventListener removes the listener's most recent registration.
func (c *EncryptedChain) RemoveEventListener(listener Listener) bool {
	return c.inner.RemoveEventListener(listener)
}
