package bloom_test

import (
	"testing"

	"github.com/mrz1836/keychain/bloom"
)

// FuzzInsertContains checks the no-false-negative guarantee: anything
// inserted must always be reported as contained, for arbitrary element
// bytes and tweaks.
func FuzzInsertContains(f *testing.F) {
	f.Add([]byte("pubkey bytes"), uint32(0))
	f.Add([]byte{}, uint32(0xFBA4C795))
	f.Add([]byte{0xff}, uint32(1<<31))

	f.Fuzz(func(t *testing.T, element []byte, tweak uint32) {
		filter, err := bloom.NewFilter(10, 0.01, tweak)
		if err != nil {
			t.Fatalf("constructing filter: %v", err)
		}
		filter.Insert(element)
		if !filter.Contains(element) {
			t.Fatalf("inserted element reported absent (tweak %d, len %d)", tweak, len(element))
		}
	})
}
