package keychain

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/keychain/bloom"
	"github.com/mrz1836/keychain/internal/memguard"
	"github.com/mrz1836/keychain/keyproto"
	"github.com/mrz1836/keychain/keys"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// Derivation branches below the account node. External keys receive
// funds; internal keys receive change. The split keeps change outputs
// unlinkable to published receive addresses.
const (
	// ExternalBranch holds receive keys (account/0/index).
	ExternalBranch uint32 = 0

	// InternalBranch holds change keys (account/1/index).
	InternalBranch uint32 = 1
)

const (
	// DefaultLookahead is how many keys beyond the last issued one each
	// branch keeps pre-derived, so the wallet's filter already matches
	// payments to keys it has not yet handed out.
	DefaultLookahead = 10

	// bip44Purpose is the purpose level of the derivation path.
	bip44Purpose = 44

	// maxDerivationSkips bounds consecutive invalid-child indices
	// (probability ~2^-127 each) before derivation is reported failed.
	maxDerivationSkips = 3
)

// ChainConfig holds derivation settings for a deterministic chain.
type ChainConfig struct {
	// CoinType is the BIP44 coin type level (hardened).
	CoinType uint32

	// Account is the BIP44 account index (hardened).
	Account uint32

	// Lookahead is the per-branch pre-derivation depth. Zero means
	// DefaultLookahead.
	Lookahead int
}

// deterministicHandle locates one derived key. The child private key is
// not retained; it is re-derivable from the branch node by whatever
// signing layer owns the chain, so locking the chain (dropping the seed
// and branch nodes) leaves nothing private behind.
type deterministicHandle struct {
	branch uint32
	index  uint32
	pubKey []byte
}

// PublicKeyBytes returns the compressed child public key.
func (h *deterministicHandle) PublicKeyBytes() []byte {
	return h.pubKey
}

// branchState tracks one derivation branch: its private node, the
// records derived so far in index order, and how many have been issued.
type branchState struct {
	branch    uint32
	node      *bip32.Key // nil while the chain is locked
	records   []*keys.Record
	issued    int
	nextIndex uint32
}

// DeterministicChain derives every key from a single seed along
// purpose-split branches. Receive and change requests advance
// independent next-unused indices, so no purpose ever re-issues a key.
type DeterministicChain struct {
	mu        sync.RWMutex
	store     *keyStore
	branches  [2]*branchState
	cfg       ChainConfig
	seed      *memguard.Buffer
	locked    bool
	listeners listenerRegistry
}

var _ KeyChain = (*DeterministicChain)(nil)

// NewDeterministicChain builds a chain from a BIP39-style seed (16-64
// bytes) and pre-derives the initial lookahead pool for both branches.
// The seed is copied into guarded memory; the caller should zero its
// own copy.
func NewDeterministicChain(seed []byte, cfg ChainConfig) (*DeterministicChain, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidKey,
			"seed must be between 16 and 64 bytes")
	}
	if cfg.Lookahead < 0 {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidInput,
			"lookahead must be non-negative")
	}
	if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}

	external, internal, err := deriveBranchNodes(seed, cfg)
	if err != nil {
		return nil, err
	}

	c := &DeterministicChain{
		store: newKeyStore(),
		cfg:   cfg,
		seed:  memguard.FromBytes(seed),
	}
	c.branches[ExternalBranch] = &branchState{branch: ExternalBranch, node: external}
	c.branches[InternalBranch] = &branchState{branch: InternalBranch, node: internal}

	c.mu.Lock()
	for _, b := range c.branches {
		if _, err := c.topUpLocked(b); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	return c, nil
}

// NewDeterministicChainFromMnemonic builds a chain from a BIP39
// mnemonic and optional passphrase.
func NewDeterministicChainFromMnemonic(mnemonic, passphrase string, cfg ChainConfig) (*DeterministicChain, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, kcerrors.ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, kcerrors.Wrap(err, "deriving seed from mnemonic")
	}
	defer zeroBytes(seed)

	return NewDeterministicChain(seed, cfg)
}

// GenerateDeterministicChain creates a fresh chain from new entropy and
// returns it together with the mnemonic that restores it. wordCount
// must be 12 (128 bits) or 24 (256 bits).
func GenerateDeterministicChain(wordCount int, passphrase string, cfg ChainConfig) (*DeterministicChain, string, error) {
	var bitSize int
	switch wordCount {
	case 12:
		bitSize = 128
	case 24:
		bitSize = 256
	default:
		return nil, "", kcerrors.WithSuggestion(kcerrors.ErrInvalidInput,
			"word count must be 12 or 24")
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return nil, "", kcerrors.Wrap(err, "generating entropy")
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", kcerrors.Wrap(err, "encoding mnemonic")
	}

	c, err := NewDeterministicChainFromMnemonic(mnemonic, passphrase, cfg)
	if err != nil {
		return nil, "", err
	}
	return c, mnemonic, nil
}

// deriveBranchNodes walks purpose'/coinType'/account' and returns the
// external and internal branch nodes below the account.
func deriveBranchNodes(seed []byte, cfg ChainConfig) (external, internal *bip32.Key, err error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving master key")
	}
	purpose, err := master.NewChildKey(bip32.FirstHardenedChild + bip44Purpose)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving purpose level")
	}
	coin, err := purpose.NewChildKey(bip32.FirstHardenedChild + cfg.CoinType)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving coin type level")
	}
	account, err := coin.NewChildKey(bip32.FirstHardenedChild + cfg.Account)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving account level")
	}
	external, err = account.NewChildKey(ExternalBranch)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving external branch")
	}
	internal, err = account.NewChildKey(InternalBranch)
	if err != nil {
		return nil, nil, kcerrors.Wrap(err, "deriving internal branch")
	}
	return external, internal, nil
}

// branchFor maps a key purpose to its derivation branch.
func (c *DeterministicChain) branchFor(purpose KeyPurpose) (*branchState, error) {
	switch purpose {
	case ReceiveFunds:
		return c.branches[ExternalBranch], nil
	case Change:
		return c.branches[InternalBranch], nil
	default:
		return nil, kcerrors.WithDetails(kcerrors.ErrExhaustedKeySpace, map[string]string{
			"purpose": purpose.String(),
		})
	}
}

// topUpLocked derives keys on the branch until lookahead+1 unissued
// records are available, returning the newly derived records. Caller
// holds the write lock. While the chain is locked no derivation happens.
func (c *DeterministicChain) topUpLocked(b *branchState) ([]*keys.Record, error) {
	if c.locked {
		return nil, nil
	}

	var added []*keys.Record
	skips := 0
	for len(b.records)-b.issued < c.cfg.Lookahead+1 {
		if b.nextIndex >= bip32.FirstHardenedChild {
			return added, kcerrors.WithDetails(kcerrors.ErrExhaustedKeySpace, map[string]string{
				"branch": strconv.FormatUint(uint64(b.branch), 10),
			})
		}

		child, err := b.node.NewChildKey(b.nextIndex)
		if err != nil {
			// Invalid child, skip the index per BIP32.
			skips++
			b.nextIndex++
			if skips > maxDerivationSkips {
				return added, kcerrors.Wrap(err, "deriving child key on branch %d", b.branch)
			}
			continue
		}
		skips = 0

		handle := &deterministicHandle{
			branch: b.branch,
			index:  b.nextIndex,
			pubKey: child.PublicKey().Key,
		}
		rec, err := keys.NewRecord(handle)
		if err != nil {
			return added, err
		}
		if _, err := c.store.insert(rec); err != nil {
			return added, err
		}
		b.records = append(b.records, rec)
		added = append(added, rec)
		b.nextIndex++
	}
	return added, nil
}

// GetKey returns the next unused key on the purpose's branch, then tops
// the lookahead pool back up. Keys derived by a top-up are announced to
// listeners as one batched event. On a locked chain, pre-derived keys
// are still issued; once none remain the call fails with ChainLocked.
func (c *DeterministicChain) GetKey(purpose KeyPurpose) (*keys.Record, error) {
	b, err := c.branchFor(purpose)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b.issued >= len(b.records) {
		// Pool drained: a locked chain that handed out its whole
		// lookahead, or an earlier derivation failure. Try once more.
		added, derr := c.topUpLocked(b)
		c.listeners.notify(added)
		if b.issued >= len(b.records) {
			if derr != nil {
				return nil, derr
			}
			if c.locked {
				return nil, kcerrors.WithDetails(kcerrors.ErrChainLocked, map[string]string{
					"purpose": purpose.String(),
				})
			}
			return nil, kcerrors.ErrInconsistentState
		}
	}

	rec := b.records[b.issued]
	b.issued++

	// Replenish the lookahead after consuming from it. A derivation
	// failure here does not void the issuance; it resurfaces on the next
	// call. Posting under the lock keeps event order aligned with
	// derivation order; delivery itself is async.
	added, _ := c.topUpLocked(b)
	c.listeners.notify(added)
	return rec, nil
}

// FindKeyFromPubHash looks up a key by its Hash160 address form.
func (c *DeterministicChain) FindKeyFromPubHash(pubKeyHash []byte) (*keys.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.lookupHash(pubKeyHash)
}

// FindKeyFromPubKey looks up a key by its raw public key bytes.
func (c *DeterministicChain) FindKeyFromPubKey(pubKey []byte) (*keys.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.lookupPubKey(pubKey)
}

// HasKey reports whether the record's key is in the chain.
func (c *DeterministicChain) HasKey(record *keys.Record) bool {
	if record == nil {
		return false
	}
	_, ok := c.FindKeyFromPubHash(record.PubKeyHash())
	return ok
}

// SerializeToProtobuf exports the chain's keys in insertion order with
// their (branch, index) locations.
func (c *DeterministicChain) SerializeToProtobuf() []*keyproto.Key {
	c.mu.RLock()
	records := c.store.snapshot()
	c.mu.RUnlock()

	out := make([]*keyproto.Key, 0, len(records))
	for _, rec := range records {
		k := &keyproto.Key{
			Type:         keyproto.TypeDeterministic,
			PublicKey:    rec.PubKey(),
			PubKeyHash:   rec.PubKeyHash(),
			CreationTime: rec.CreatedAt().Unix(),
		}
		if h, ok := rec.Handle().(*deterministicHandle); ok {
			k.Branch = h.branch
			k.Index = h.index
		}
		out = append(out, k)
	}
	return out
}

// NumKeys returns the number of derived keys (issued plus lookahead).
func (c *DeterministicChain) NumKeys() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.size()
}

// NumBloomFilterEntries returns 2*NumKeys: each key contributes its
// public key and the hash of it.
func (c *DeterministicChain) NumBloomFilterEntries() int {
	return 2 * c.NumKeys()
}

// GetFilter builds a filter over a snapshot of the chain's public
// identifiers. Parameters are validated before any state is read.
func (c *DeterministicChain) GetFilter(size int, falsePositiveRate float64, tweak uint32) (*bloom.Filter, error) {
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
func (c *DeterministicChain) AddEventListener(listener Listener) {
	c.listeners.add(listener, nil)
}

// AddEventListenerWithExecutor registers a listener on the given
// executor.
func (c *DeterministicChain) AddEventListenerWithExecutor(listener Listener, executor Executor) {
	c.listeners.add(listener, executor)
}

// RemoveEventListener removes the listener's most recent registration.
func (c *DeterministicChain) RemoveEventListener(listener Listener) bool {
	return c.listeners.remove(listener)
}

// IssuedKeys returns how many keys have been handed out for the purpose.
func (c *DeterministicChain) IssuedKeys(purpose KeyPurpose) int {
	b, err := c.branchFor(purpose)
	if err != nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return b.issued
}

// seedBytes exposes the guarded seed to the encrypted wrapper.
func (c *DeterministicChain) seedBytes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.seed == nil {
		return nil
	}
	return c.seed.Bytes()
}

// lock drops the seed and branch private nodes. Lookups and the
// pre-derived pool keep working; new derivation stops.
func (c *DeterministicChain) lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = true
	for _, b := range c.branches {
		b.node = nil
	}
	if c.seed != nil {
		c.seed.Destroy()
		c.seed = nil
	}
}

// unlockWithSeed rebuilds the branch nodes from the seed and verifies
// they reproduce the chain's existing keys before accepting it.
func (c *DeterministicChain) unlockWithSeed(seed []byte) error {
	external, internal, err := deriveBranchNodes(seed, c.cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The restored nodes must regenerate the first derived key of each
	// populated branch; anything else means the wrong seed.
	nodes := [2]*bip32.Key{external, internal}
	for i, b := range c.branches {
		if len(b.records) == 0 {
			continue
		}
		first, ok := b.records[0].Handle().(*deterministicHandle)
		if !ok {
			return kcerrors.ErrInconsistentState
		}
		child, cerr := nodes[i].NewChildKey(first.index)
		if cerr != nil {
			return kcerrors.Wrap(cerr, "verifying restored seed")
		}
		if !bytes.Equal(child.PublicKey().Key, b.records[0].PubKey()) {
			return kcerrors.WithSuggestion(kcerrors.ErrInconsistentState,
				"restored seed does not match this chain's keys")
		}
	}

	c.branches[ExternalBranch].node = external
	c.branches[InternalBranch].node = internal
	c.seed = memguard.FromBytes(seed)
	c.locked = false
	return nil
}

// zeroBytes wipes a sensitive slice.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
