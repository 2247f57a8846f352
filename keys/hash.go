package keys

import (
	"crypto/sha256"

	// RIPEMD160 is deprecated but REQUIRED for address-form key hashing
	// (P2PKH). Hash160 = RIPEMD160(SHA256(pubkey)) is a protocol
	// requirement and cannot be changed.
	//nolint:gosec,staticcheck // G507,SA1019: RIPEMD160 required for protocol compatibility
	"golang.org/x/crypto/ripemd160"
)

// Hash160 computes RIPEMD160(SHA256(data)), the standard address-form
// hash of a public key.
//
// Security Note: RIPEMD160 is deprecated for NEW applications, but this
// implementation is for wire compatibility ONLY.
//
//nolint:gosec // G406: RIPEMD160 usage required for protocol compatibility
func Hash160(data []byte) []byte {
	sha256Hash := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(sha256Hash[:])
	return ripemd.Sum(nil)
}

// DoubleSHA256 computes SHA256(SHA256(data)).
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}
