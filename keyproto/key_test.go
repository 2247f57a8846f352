package keyproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keychain/keyproto"
)

func TestMarshalDeterminism(t *testing.T) {
	k := &keyproto.Key{
		Type:         keyproto.TypeDeterministic,
		PublicKey:    []byte{0x02, 0x01, 0x02, 0x03},
		PubKeyHash:   []byte{0xaa, 0xbb},
		CreationTime: 1700000000,
		Branch:       1,
		Index:        42,
	}

	first := k.Marshal()
	second := k.Marshal()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestRoundTripDeterministicKey(t *testing.T) {
	in := &keyproto.Key{
		Type:         keyproto.TypeDeterministic,
		PublicKey:    []byte{0x03, 0xde, 0xad},
		PubKeyHash:   []byte{0xbe, 0xef},
		CreationTime: 1234567890,
		Branch:       1,
		Index:        7,
	}

	out, err := keyproto.Unmarshal(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTripRandomKeyOmitsPath(t *testing.T) {
	in := &keyproto.Key{
		Type:         keyproto.TypeRandom,
		PublicKey:    []byte{0x02, 0x11},
		PubKeyHash:   []byte{0x22},
		CreationTime: 42,
		// Branch/Index set but meaningless for a random key; they must
		// not survive the wire.
		Branch: 9,
		Index:  9,
	}

	out, err := keyproto.Unmarshal(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, keyproto.TypeRandom, out.Type)
	assert.Zero(t, out.Branch)
	assert.Zero(t, out.Index)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := keyproto.Unmarshal([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	// Structurally valid but missing a known key type.
	_, err = keyproto.Unmarshal([]byte{})
	assert.Error(t, err)
}
