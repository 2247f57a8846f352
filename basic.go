package keychain

import (
	"sync"

	"github.com/mrz1836/keychain/bloom"
	"github.com/mrz1836/keychain/keyproto"
	"github.com/mrz1836/keychain/keys"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// BasicChain is the direct-store chain variant. It holds independently
// generated or imported secp256k1 keys with no derivation relationship
// between them.
//
// A chain created with NewBasicChain mints a fresh random key on every
// GetKey call, so no issued key is ever re-used. A chain created with
// NewBasicChainFromKeys is a fixed pool: GetKey hands out each imported
// key once, in insertion order, and fails with ExhaustedKeySpace once
// the pool is consumed.
type BasicChain struct {
	mu        sync.RWMutex
	store     *keyStore
	mintable  bool
	nextIssue int
	listeners listenerRegistry
}

var _ KeyChain = (*BasicChain)(nil)

// NewBasicChain creates an empty chain that mints fresh random keys on
// demand.
func NewBasicChain() *BasicChain {
	return &BasicChain{
		store:    newKeyStore(),
		mintable: true,
	}
}

// NewBasicChainFromKeys creates a fixed-pool chain over existing key
// material. The pool is issued in the given order and never extended by
// GetKey.
func NewBasicChainFromKeys(handles ...keys.PrivateHandle) (*BasicChain, error) {
	c := &BasicChain{
		store: newKeyStore(),
	}
	if _, err := c.ImportKeys(handles...); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportKeys adds keys to the chain, skipping any already present, and
// returns how many were actually added. All newly added keys are
// announced to listeners as a single batched event.
func (c *BasicChain) ImportKeys(handles ...keys.PrivateHandle) (int, error) {
	if len(handles) == 0 {
		return 0, nil
	}

	added := make([]*keys.Record, 0, len(handles))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range handles {
		rec, err := keys.NewRecord(h)
		if err != nil {
			return 0, kcerrors.Wrap(err, "importing key")
		}
		inserted, err := c.store.insert(rec)
		if err != nil {
			return 0, err
		}
		if inserted {
			added = append(added, rec)
		}
	}

	// Posting under the lock keeps event order aligned with insertion
	// order across concurrent importers; delivery itself is async.
	c.listeners.notify(added)
	return len(added), nil
}

// ImportKey adds a single key; see ImportKeys.
func (c *BasicChain) ImportKey(handle keys.PrivateHandle) (bool, error) {
	n, err := c.ImportKeys(handle)
	return n == 1, err
}

// FindKeyFromPubHash looks up a key by its Hash160 address form.
func (c *BasicChain) FindKeyFromPubHash(pubKeyHash []byte) (*keys.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.lookupHash(pubKeyHash)
}

// FindKeyFromPubKey looks up a key by its raw public key bytes.
func (c *BasicChain) FindKeyFromPubKey(pubKey []byte) (*keys.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.lookupPubKey(pubKey)
}

// HasKey reports whether the record's key is in the chain.
func (c *BasicChain) HasKey(record *keys.Record) bool {
	if record == nil {
		return false
	}
	_, ok := c.FindKeyFromPubHash(record.PubKeyHash())
	return ok
}

// GetKey returns a key for the purpose. Mintable chains create a fresh
// key per call and notify listeners; pool chains issue each key once.
func (c *BasicChain) GetKey(purpose KeyPurpose) (*keys.Record, error) {
	if c.mintable {
		return c.mintKey()
	}

	c.mu.Lock()
	if c.nextIssue >= c.store.size() {
		c.mu.Unlock()
		return nil, kcerrors.WithDetails(kcerrors.ErrExhaustedKeySpace, map[string]string{
			"purpose": purpose.String(),
		})
	}
	rec := c.store.records[c.nextIssue]
	c.nextIssue++
	c.mu.Unlock()

	return rec, nil
}

func (c *BasicChain) mintKey() (*keys.Record, error) {
	handle, err := keys.GenerateHandle()
	if err != nil {
		return nil, err
	}
	rec, err := keys.NewRecord(handle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err = c.store.insert(rec); err != nil {
		return nil, err
	}
	c.listeners.notify([]*keys.Record{rec})
	return rec, nil
}

// SerializeToProtobuf exports the chain's keys in insertion order.
func (c *BasicChain) SerializeToProtobuf() []*keyproto.Key {
	c.mu.RLock()
	records := c.store.snapshot()
	c.mu.RUnlock()

	out := make([]*keyproto.Key, 0, len(records))
	for _, rec := range records {
		out = append(out, &keyproto.Key{
			Type:         keyproto.TypeRandom,
			PublicKey:    rec.PubKey(),
			PubKeyHash:   rec.PubKeyHash(),
			CreationTime: rec.CreatedAt().Unix(),
		})
	}
	return out
}

// NumKeys returns the number of managed keys.
func (c *BasicChain) NumKeys() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.size()
}

// NumBloomFilterEntries returns 2*NumKeys: each key contributes its
// public key and the hash of it.
func (c *BasicChain) NumBloomFilterEntries() int {
	return 2 * c.NumKeys()
}

// GetFilter builds a filter over a snapshot of the chain's public
// identifiers. Parameters are validated before any state is read.
func (c *BasicChain) GetFilter(size int, falsePositiveRate float64, tweak uint32) (*bloom.Filter, error) {
	filter, err := bloom.NewFilter(size, falsePositiveRate, tweak)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	idents := c.store.identifiers()
	c.mu.RUnlock()

	for _, id := range idents {
		filter.Insert(id)
	}
	return filter, nil
}

// AddEventListener registers a listener on the default executor.
func (c *BasicChain) AddEventListener(listener Listener) {
	c.listeners.add(listener, nil)
}

// AddEventListenerWithExecutor registers a listener on the given
// executor.
func (c *BasicChain) AddEventListenerWithExecutor(listener Listener, executor Executor) {
	c.listeners.add(listener, executor)
}

// RemoveEventListener removes the listener's most recent registration.
func (c *BasicChain) RemoveEventListener(listener Listener) bool {
	return c.listeners.remove(listener)
}
