package keys_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keychain/keys"
	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// The secp256k1 generator point is the public key of private key 1; its
// Hash160 is a fixed, well-known value.
const (
	generatorPubKeyHex  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	generatorHash160Hex = "751e76e8199196d454941c45d1b3a323f1433bd6"
)

func TestHash160Vector(t *testing.T) {
	pub, err := hex.DecodeString(generatorPubKeyHex)
	require.NoError(t, err)

	assert.Equal(t, generatorHash160Hex, hex.EncodeToString(keys.Hash160(pub)))
}

func TestRecordFromKnownPrivateKey(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 1

	handle, err := keys.HandleFromPrivateBytes(priv)
	require.NoError(t, err)

	rec, err := keys.NewRecord(handle)
	require.NoError(t, err)

	assert.Equal(t, generatorPubKeyHex, hex.EncodeToString(rec.PubKey()))
	assert.Equal(t, generatorHash160Hex, hex.EncodeToString(rec.PubKeyHash()))
	assert.Len(t, rec.PubKey(), keys.CompressedPubKeyLen)
	assert.Len(t, rec.PubKeyHash(), keys.PubKeyHashLen)
	assert.False(t, rec.CreatedAt().IsZero())
	assert.Same(t, handle, rec.Handle())
}

func TestGenerateHandleProducesDistinctKeys(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		handle, err := keys.GenerateHandle()
		require.NoError(t, err)

		rec, err := keys.NewRecord(handle)
		require.NoError(t, err)

		pub := hex.EncodeToString(rec.PubKey())
		assert.False(t, seen[pub], "duplicate generated key: %s", pub)
		seen[pub] = true

		// The cached hash must always be the hash of the cached pubkey.
		assert.Equal(t, keys.Hash160(rec.PubKey()), rec.PubKeyHash())
	}
}

func TestHandleFromPrivateBytesRejectsBadInput(t *testing.T) {
	_, err := keys.HandleFromPrivateBytes(make([]byte, 16))
	assert.True(t, kcerrors.Is(err, kcerrors.ErrInvalidKey))

	_, err = keys.HandleFromPrivateBytes(make([]byte, 32))
	assert.True(t, kcerrors.Is(err, kcerrors.ErrInvalidKey), "all-zero key must be rejected")
}

func TestNewRecordRejectsNilHandle(t *testing.T) {
	_, err := keys.NewRecord(nil)
	assert.True(t, kcerrors.Is(err, kcerrors.ErrInvalidKey))
}

func TestEqualPub(t *testing.T) {
	handle, err := keys.GenerateHandle()
	require.NoError(t, err)

	a, err := keys.NewRecord(handle)
	require.NoError(t, err)
	b, err := keys.NewRecord(handle)
	require.NoError(t, err)

	assert.True(t, a.EqualPub(b))
	assert.False(t, a.EqualPub(nil))

	other, err := keys.GenerateHandle()
	require.NoError(t, err)
	c, err := keys.NewRecord(other)
	require.NoError(t, err)
	assert.False(t, a.EqualPub(c))
}
