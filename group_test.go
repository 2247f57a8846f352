package keychain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keychain"
	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

func TestGroupCountsSumMembers(t *testing.T) {
	basic := keychain.NewBasicChain()
	_, err := basic.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	det, err := keychain.NewDeterministicChainFromMnemonic(testMnemonic, "",
		keychain.ChainConfig{Lookahead: 2})
	require.NoError(t, err)

	g := keychain.NewGroup(basic, det)
	assert.Equal(t, basic.NumKeys()+det.NumKeys(), g.NumKeys())
	assert.Equal(t, basic.NumBloomFilterEntries()+det.NumBloomFilterEntries(),
		g.NumBloomFilterEntries())
}

func TestGroupFilterCoversAllChains(t *testing.T) {
	basic := keychain.NewBasicChain()
	minted, err := basic.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	det, err := keychain.NewDeterministicChainFromMnemonic(testMnemonic, "",
		keychain.ChainConfig{Lookahead: 2})
	require.NoError(t, err)
	derived, err := det.GetKey(keychain.Change)
	require.NoError(t, err)

	g := keychain.NewGroup(basic, det)

	filter, err := g.GetFilter(g.NumBloomFilterEntries(), 0.001, 77)
	require.NoError(t, err)

	assert.True(t, filter.Contains(minted.PubKey()))
	assert.True(t, filter.Contains(minted.PubKeyHash()))
	assert.True(t, filter.Contains(derived.PubKey()))
	assert.True(t, filter.Contains(derived.PubKeyHash()))
}

func TestGroupMergeOrderIndependent(t *testing.T) {
	basic := keychain.NewBasicChain()
	_, err := basic.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	det, err := keychain.NewDeterministicChainFromMnemonic(testMnemonic, "",
		keychain.ChainConfig{Lookahead: 2})
	require.NoError(t, err)

	size := basic.NumBloomFilterEntries() + det.NumBloomFilterEntries()

	forward, err := keychain.NewGroup(basic, det).GetFilter(size, 0.01, 9)
	require.NoError(t, err)
	reverse, err := keychain.NewGroup(det, basic).GetFilter(size, 0.01, 9)
	require.NoError(t, err)

	assert.Equal(t, forward.Bytes(), reverse.Bytes())
}

func TestGroupInvalidFilterParams(t *testing.T) {
	g := keychain.NewGroup(keychain.NewBasicChain())

	_, err := g.GetFilter(0, 0.01, 1)
	assert.True(t, kcerrors.Is(err, kcerrors.ErrInvalidFilterParams))
}

func TestGroupListenerFanOut(t *testing.T) {
	a := keychain.NewBasicChain()
	b := keychain.NewBasicChain()
	g := keychain.NewGroup(a, b)

	listener := &recordingListener{}
	g.AddEventListenerWithExecutor(listener, syncExecutor)

	_, err := a.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)
	_, err = b.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	assert.Len(t, listener.snapshot(), 2)

	assert.True(t, g.RemoveEventListener(listener))
	_, err = a.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)
	assert.Len(t, listener.snapshot(), 2)
}

func TestGroupAddChain(t *testing.T) {
	g := keychain.NewGroup()
	assert.Zero(t, g.NumKeys())

	c := keychain.NewBasicChain()
	_, err := c.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	g.AddChain(c)
	assert.Equal(t, 1, g.NumKeys())
	assert.Len(t, g.Chains(), 1)
}
