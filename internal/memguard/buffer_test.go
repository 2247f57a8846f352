package memguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	b := FromBytes(src)

	require.Equal(t, src, b.Bytes())

	src[0] = 99
	assert.Equal(t, byte(1), b.Bytes()[0], "buffer must own its copy")
}

func TestDestroyZeroesAndNils(t *testing.T) {
	b := FromBytes([]byte{0xaa, 0xbb})
	data := b.Bytes()

	b.Destroy()
	assert.True(t, b.Destroyed())
	assert.Nil(t, b.Bytes())

	// The old backing array is wiped.
	for _, v := range data {
		assert.Zero(t, v)
	}

	// Safe to call again.
	b.Destroy()
}

func TestNewBufferIsZeroed(t *testing.T) {
	b := NewBuffer(8)
	for _, v := range b.Bytes() {
		assert.Zero(t, v)
	}
	assert.False(t, b.Destroyed())
}
