// Package keyproto defines the portable wire form of a single managed
// key. The schema itself (field numbering and encoding rules) belongs to
// the wallet's persistence layer; this package fixes the field numbers
// and produces deterministic bytes so chains can export their keys in
// insertion order and round-trip them.
//
// Encoding is done directly with protowire rather than generated code:
// the message is a single flat record and the descriptor is owned by the
// external serialization collaborator.
package keyproto

import (
	"google.golang.org/protobuf/encoding/protowire"

	kcerrors "github.com/mrz1836/keychain/pkg/errors"
)

// KeyType discriminates how the private material of a serialized key is
// stored or derived.
type KeyType int32

// Key types.
const (
	// TypeRandom is an independently generated or imported key.
	TypeRandom KeyType = 1

	// TypeDeterministic is a key derived from a seed at (branch, index).
	TypeDeterministic KeyType = 2
)

// Field numbers for the Key message. Fixed; changing them breaks every
// persisted wallet.
const (
	fieldType         = 1
	fieldPublicKey    = 2
	fieldPubKeyHash   = 3
	fieldCreationTime = 4
	fieldBranch       = 5
	fieldIndex        = 6
)

// Key is the wire form of one managed key. Private key bytes are never
// part of this record; deterministic keys are recoverable from the seed
// via (Branch, Index), and random keys are re-imported by the owning
// chain's own storage.
type Key struct {
	Type         KeyType
	PublicKey    []byte
	PubKeyHash   []byte
	CreationTime int64 // unix seconds, UTC

	// Branch and Index locate a deterministic key below its account
	// node. Only meaningful when Type is TypeDeterministic.
	Branch uint32
	Index  uint32
}

// Marshal encodes the key deterministically: fields in ascending number
// order, zero-valued optional fields omitted.
func (k *Key) Marshal() []byte {
	// type + two byte fields + timestamp + two varints, plus tags
	b := make([]byte, 0, 16+len(k.PublicKey)+len(k.PubKeyHash))

	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Type))

	if len(k.PublicKey) > 0 {
		b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, k.PublicKey)
	}
	if len(k.PubKeyHash) > 0 {
		b = protowire.AppendTag(b, fieldPubKeyHash, protowire.BytesType)
		b = protowire.AppendBytes(b, k.PubKeyHash)
	}
	if k.CreationTime != 0 {
		b = protowire.AppendTag(b, fieldCreationTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.CreationTime))
	}
	if k.Type == TypeDeterministic {
		b = protowire.AppendTag(b, fieldBranch, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.Branch))
		b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.Index))
	}
	return b
}

// Unmarshal decodes a Key message. Unknown fields are skipped so newer
// writers remain readable.
func Unmarshal(data []byte) (*Key, error) {
	k := &Key{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, kcerrors.Wrap(protowire.ParseError(n), "decoding key record tag")
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding key type")
			}
			k.Type = KeyType(v)
			data = data[m:]
		case num == fieldPublicKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding public key")
			}
			k.PublicKey = append([]byte(nil), v...)
			data = data[m:]
		case num == fieldPubKeyHash && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding pubkey hash")
			}
			k.PubKeyHash = append([]byte(nil), v...)
			data = data[m:]
		case num == fieldCreationTime && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding creation time")
			}
			k.CreationTime = int64(v)
			data = data[m:]
		case num == fieldBranch && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding branch")
			}
			k.Branch = uint32(v)
			data = data[m:]
		case num == fieldIndex && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "decoding index")
			}
			k.Index = uint32(v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, kcerrors.Wrap(protowire.ParseError(m), "skipping unknown field %d", num)
			}
			data = data[m:]
		}
	}

	if k.Type != TypeRandom && k.Type != TypeDeterministic {
		return nil, kcerrors.WithSuggestion(kcerrors.ErrInvalidInput,
			"key record has an unknown key type")
	}
	return k, nil
}
