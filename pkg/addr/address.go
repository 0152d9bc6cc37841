// Package addr implements the account address encoding described in §6 of
// the peer-synchronization specification: a 32-byte payload prefixed with a
// single-character type selector and rendered as Crockford base32 with an
// embedded CRC-24Q checksum.
package addr

import (
	"fmt"

	"github.com/synledger/fullnode/pkg/wire"
)

// Kind selects the semantic meaning of an address's 32-byte payload.
type Kind byte

const (
	// KindNull denotes the zero/null address.
	KindNull Kind = iota
	// KindPubkey denotes an address derived from a public key.
	KindPubkey
	// KindTemplate denotes an address derived from a spending template.
	KindTemplate

	// prefixMax bounds the number of distinct address kinds; the wire
	// prefix character is '0'+kind and must stay inside the base32
	// alphabet's digit range.
	prefixMax = 3
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindPubkey:
		return "PUBKEY"
	case KindTemplate:
		return "TEMPLATE"
	default:
		return "UNKNOWN"
	}
}

// Address is a 32-byte account identifier tagged with a Kind.
type Address struct {
	Kind    Kind
	Payload [32]byte
}

// String renders the address as prefix||base32(payload), 57 characters
// total (1-byte prefix + 56-character base32 body).
func (a Address) String() string {
	return string('0'+byte(a.Kind)) + wire.Base32Encode32(a.Payload)
}

// Parse decodes a string produced by Address.String, validating the
// embedded CRC-24Q checksum. Parse(s).String() == s for any well-formed
// address, and the round trip holds for every valid Kind.
func Parse(s string) (Address, error) {
	if len(s) != 57 {
		return Address{}, fmt.Errorf("addr: expected 57 characters, got %d", len(s))
	}
	prefix := s[0]
	if prefix < '0' || prefix >= '0'+prefixMax {
		return Address{}, fmt.Errorf("addr: unknown prefix %q", prefix)
	}
	payload, err := wire.Base32Decode32(s[1:])
	if err != nil {
		return Address{}, fmt.Errorf("addr: %w", err)
	}
	return Address{Kind: Kind(prefix - '0'), Payload: payload}, nil
}

// IsNull reports whether a is the zero address.
func (a Address) IsNull() bool {
	return a.Kind == KindNull && a.Payload == [32]byte{}
}
