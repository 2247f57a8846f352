package keychain

import (
	"sync"

	"github.com/mrz1836/keychain/bloom"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// Group aggregates several chains behind one filter and lookup surface.
// It is the coordination point for filter parameters: every member
// builds with the same (size, rate, tweak), so the per-chain filters
// merge into a single loadable one.
type Group struct {
	mu     sync.RWMutex
	chains []KeyChain
}

// NewGroup creates a group over the given chains.
func NewGroup(chains ...KeyChain) *Group {
	g := &Group{}
	g.chains = append(g.chains, chains...)
	return g
}

// AddChain appends a chain to the group.
func (g *Group) AddChain(chain KeyChain) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chains = append(g.chains, chain)
}

// Chains returns a snapshot of the member chains.
func (g *Group) Chains() []KeyChain {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]KeyChain, len(g.chains))
	copy(out, g.chains)
	return out
}

// NumKeys sums the member chains' key counts.
func (g *Group) NumKeys() int {
	total := 0
	for _, c := range g.Chains() {
		total += c.NumKeys()
	}
	return total
}

// NumBloomFilterEntries sums the member chains' filter contributions.
// Callers must size a combined filter with at least this value.
func (g *Group) NumBloomFilterEntries() int {
	total := 0
	for _, c := range g.Chains() {
		total += c.NumBloomFilterEntries()
	}
	return total
}

// GetFilter builds each member's filter with identical parameters and
// merges them. size should be at least NumBloomFilterEntries; it is
// passed through unchanged so the caller can also reserve headroom for
// keys minted between filter loads.
func (g *Group) GetFilter(size int, falsePositiveRate float64, tweak uint32) (*bloom.Filter, error) {
	combined, err := bloom.NewFilter(size, falsePositiveRate, tweak)
	if err != nil {
		return nil, err
	}

	for _, c := range g.Chains() {
		part, ferr := c.GetFilter(size, falsePositiveRate, tweak)
		if ferr != nil {
			return nil, ferr
		}
		if merr := combined.Merge(part); merr != nil {
			return nil, kcerrors.Wrap(merr, "merging chain filter")
		}
	}
	return combined, nil
}

// AddEventListener registers the listener on every member chain, on the
// default executor.
func (g *Group) AddEventListener(listener Listener) {
	for _, c := range g.Chains() {
		c.AddEventListener(listener)
	}
}

// AddEventListenerWithExecutor registers the listener on every member
// chain, on the given executor.
func (g *Group) AddEventListenerWithExecutor(listener Listener, executor Executor) {
	for _, c := range g.Chains() {
		c.AddEventListenerWithExecutor(listener, executor)
	}
}

// RemoveEventListener removes the listener from every member chain and
// reports whether any registration existed.
func (g *Group) RemoveEventListener(listener Listener) bool {
	removed := false
	for _, c := range g.Chains() {
		if c.RemoveEventListener(listener) {
			removed = true
		}
	}
	return removed
}
