package keys

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// secpHandle wraps a freshly generated or imported secp256k1 private key.
// It is the handle type used by direct-store chains.
type secpHandle struct {
	priv   *secp256k1.PrivateKey
	pubKey []byte
}

// PublicKeyBytes returns the compressed public key.
func (h *secpHandle) PublicKeyBytes() []byte {
	return h.pubKey
}

// GenerateHandle creates a private handle backed by a new random
// secp256k1 private key.
func GenerateHandle() (PrivateHandle, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, kcerrors.Wrap(err, "generating secp256k1 private key")
	}
	return &secpHandle{
		priv:   priv,
		pubKey: priv.PubKey().SerializeCompressed(),
	}, nil
}

// HandleFromPrivateBytes creates a private handle from 32 raw secp256k1
// private key bytes, for chains that import existing key material. The
// input slice is not retained.
func HandleFromPrivateBytes(privBytes []byte) (PrivateHandle, error) {
	if len(privBytes) != 32 {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidKey,
			"private key material must be 32 bytes")
	}
	priv := secp256k1.PrivKeyFromBytes(privBytes)
	if priv.Key.IsZero() {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidKey,
			"private key must be non-zero")
	}
	return &secpHandle{
		priv:   priv,
		pubKey: priv.PubKey().SerializeCompressed(),
	}, nil
}
