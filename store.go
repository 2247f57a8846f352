package keychain

import (
	"strconv"

	"github.com/mrz1836/keychain/keys"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// keyStore is the single source of truth for a chain's keys: an
// insertion-ordered record slice plus the two derived lookup indices.
// All three are updated together under the owning chain's lock, so a
// reader holding that lock always sees a consistent set.
type keyStore struct {
	records  []*keys.Record
	byHash   map[string]*keys.Record
	byPubKey map[string]*keys.Record
}

func newKeyStore() *keyStore {
	return &keyStore{
		byHash:   make(map[string]*keys.Record),
		byPubKey: make(map[string]*keys.Record),
	}
}

// insert adds a record to the ordered slice and both indices. It
// reports false for a key already present (by hash). Caller holds the
// chain's write lock.
func (s *keyStore) insert(rec *keys.Record) (bool, error) {
	hashKey := string(rec.PubKeyHash())
	if _, ok := s.byHash[hashKey]; ok {
		return false, nil
	}

	s.records = append(s.records, rec)
	s.byHash[hashKey] = rec
	s.byPubKey[string(rec.PubKey())] = rec

	if len(s.byHash) != len(s.records) || len(s.byPubKey) != len(s.records) {
		return false, kcerrors.WithDetails(kcerrors.ErrInconsistentState, map[string]string{
			"records":   strconv.Itoa(len(s.records)),
			"by_hash":   strconv.Itoa(len(s.byHash)),
			"by_pubkey": strconv.Itoa(len(s.byPubKey)),
		})
	}
	return true, nil
}

func (s *keyStore) lookupHash(pubKeyHash []byte) (*keys.Record, bool) {
	rec, ok := s.byHash[string(pubKeyHash)]
	return rec, ok
}

func (s *keyStore) lookupPubKey(pubKey []byte) (*keys.Record, bool) {
	rec, ok := s.byPubKey[string(pubKey)]
	return rec, ok
}

func (s *keyStore) size() int {
	return len(s.records)
}

// snapshot returns a copy of the ordered record slice. The records
// themselves are immutable and shared.
func (s *keyStore) snapshot() []*keys.Record {
	out := make([]*keys.Record, len(s.records))
	copy(out, s.records)
	return out
}

// identifiers returns every public identifier in insertion order: for
// each record the raw public key followed by its hash.
func (s *keyStore) identifiers() [][]byte {
	out := make([][]byte, 0, 2*len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.PubKey(), rec.PubKeyHash())
	}
	return out
}
