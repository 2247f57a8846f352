// Package bloom implements the probabilistic membership filter a wallet
// hands to an untrusted peer so that only relevant transaction data is
// returned, without revealing the wallet's full key set.
//
// The construction is the standard wire-compatible one: the bit array
// length and hash-function count are derived from the expected element
// count and target false-positive rate, and each element is inserted
// with k murmur3 evaluations salted by a caller-supplied tweak. Given
// identical inputs the bit layout is byte-identical, which peers rely on
// when validating filter size limits.
package bloom

import (
	"math"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/twmb/murmur3"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

const (
	// MaxFilterBytes is the protocol maximum for the filter bit array.
	MaxFilterBytes = 36000

	// MaxHashFuncs is the protocol maximum for the hash-function count.
	MaxHashFuncs = 50

	// seedMultiplier spreads the per-function index across murmur3
	// seeds. Fixed by the wire format.
	seedMultiplier = 0xFBA4C795

	ln2Squared = math.Ln2 * math.Ln2
)

// Filter is an immutable-parameter Bloom filter. Bits only ever get set;
// the sizing parameters are fixed at construction so filters built with
// identical parameters can be merged bit-wise.
type Filter struct {
	bits      *bitset.BitSet
	numBits   uint32
	hashFuncs uint32
	tweak     uint32
}

// NewFilter sizes a filter to hold the given number of elements at
// approximately the given false-positive rate. The tweak is a random
// salt mixed into every hash so the same key set produces different bit
// patterns across sessions.
//
// elements must be >= 1 and falsePositiveRate must be in (0, 1);
// anything else is rejected before any computation.
func NewFilter(elements int, falsePositiveRate float64, tweak uint32) (*Filter, error) {
	if elements < 1 {
		return nil, kcerrors.WithDetails(kcerrors.ErrInvalidFilterParams, map[string]string{
			"elements": strconv.Itoa(elements),
		})
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, kcerrors.WithDetails(kcerrors.ErrInvalidFilterParams, map[string]string{
			"false_positive_rate": strconv.FormatFloat(falsePositiveRate, 'g', -1, 64),
		})
	}

	// Optimal bit-array length for n elements at rate p, capped at the
	// protocol maximum. Truncation (not rounding) matches the wire
	// construction peers validate against.
	numBytes := uint32(math.Min(
		-1/ln2Squared*float64(elements)*math.Log(falsePositiveRate),
		MaxFilterBytes*8) / 8)
	if numBytes < 1 {
		numBytes = 1
	}
	numBits := numBytes * 8

	hashFuncs := uint32(math.Min(
		float64(numBits)/float64(elements)*math.Ln2,
		MaxHashFuncs))
	if hashFuncs < 1 {
		hashFuncs = 1
	}

	return &Filter{
		bits:      bitset.New(uint(numBits)),
		numBits:   numBits,
		hashFuncs: hashFuncs,
		tweak:     tweak,
	}, nil
}

// hash computes the bit index for hash function n over data.
func (f *Filter) hash(n uint32, data []byte) uint32 {
	seed := n*seedMultiplier + f.tweak
	return murmur3.SeedSum32(seed, data) % f.numBits
}

// Insert adds an element to the filter.
func (f *Filter) Insert(data []byte) {
	for n := uint32(0); n < f.hashFuncs; n++ {
		f.bits.Set(uint(f.hash(n, data)))
	}
}

// Contains reports whether the element may be in the filter. False
// positives occur at roughly the construction rate; false negatives
// never occur.
func (f *Filter) Contains(data []byte) bool {
	for n := uint32(0); n < f.hashFuncs; n++ {
		if !f.bits.Test(uint(f.hash(n, data))) {
			return false
		}
	}
	return true
}

// Merge ORs another filter into this one. Both filters must have been
// built with identical size, hash-function count, and tweak; merging
// anything else would corrupt membership semantics, so it is refused.
func (f *Filter) Merge(other *Filter) error {
	if other == nil {
		return kcerrors.WithSuggestion(kcerrors.ErrFilterMismatch,
			"cannot merge a nil filter")
	}
	if f.numBits != other.numBits || f.hashFuncs != other.hashFuncs || f.tweak != other.tweak {
		return kcerrors.WithDetails(kcerrors.ErrFilterMismatch, map[string]string{
			"bits":       strconv.FormatUint(uint64(f.numBits), 10),
			"other_bits": strconv.FormatUint(uint64(other.numBits), 10),
		})
	}
	f.bits.InPlaceUnion(other.bits)
	return nil
}

// Bytes returns the filter's bit array in wire layout: bit i lives at
// byte i/8, bit position i%8 (little-endian within each byte). The
// result is a fresh slice.
func (f *Filter) Bytes() []byte {
	out := make([]byte, f.numBits/8)
	for i, ok := f.bits.NextSet(0); ok; i, ok = f.bits.NextSet(i + 1) {
		out[i>>3] |= 1 << (i & 7)
	}
	return out
}

// Size returns the bit-array length in bytes.
func (f *Filter) Size() int {
	return int(f.numBits / 8)
}

// HashFuncs returns the number of hash functions.
func (f *Filter) HashFuncs() uint32 {
	return f.hashFuncs
}

// Tweak returns the salt the filter was built with.
func (f *Filter) Tweak() uint32 {
	return f.tweak
}

// SetBits returns the number of set bits, useful for load estimation.
func (f *Filter) SetBits() uint {
	return f.bits.Count()
}
