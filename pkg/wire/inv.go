package wire

import (
	"encoding/binary"
	"fmt"
)

// InvKind distinguishes the two kinds of inventory objects advertised on
// the DATA channel. Kind 0 is not assigned to either.
type InvKind uint32

const (
	InvKindTx InvKind = iota + 1
	InvKindBlock
)

func (k InvKind) String() string {
	switch k {
	case InvKindTx:
		return "TX"
	case InvKindBlock:
		return "BLOCK"
	default:
		return fmt.Sprintf("InvKind(%d)", uint32(k))
	}
}

// Inv identifies a single inventory object: its kind plus a 256-bit hash.
// Inv values order first by Kind, then by Hash, matching the ordering used
// to keep inventory vectors and scheduler maps deterministic.
type Inv struct {
	Kind InvKind
	Hash [32]byte
}

// Less reports whether inv sorts before other.
func (inv Inv) Less(other Inv) bool {
	if inv.Kind != other.Kind {
		return inv.Kind < other.Kind
	}
	for i := range inv.Hash {
		if inv.Hash[i] != other.Hash[i] {
			return inv.Hash[i] < other.Hash[i]
		}
	}
	return false
}

// invWireSize is the on-wire size of a single Inv: 4-byte kind + 32-byte hash.
const invWireSize = 4 + 32

// MaxInvVectorLen caps the number of entries carried by a single INV
// message; larger announcements must be split across multiple messages.
const MaxInvVectorLen = 8192

// EncodeInv appends the wire form of inv to dst.
func EncodeInv(dst []byte, inv Inv) []byte {
	var kindBuf [4]byte
	binary.BigEndian.PutUint32(kindBuf[:], uint32(inv.Kind))
	dst = append(dst, kindBuf[:]...)
	dst = append(dst, inv.Hash[:]...)
	return dst
}

// DecodeInv reads a single Inv from the front of src, returning the
// remaining bytes.
func DecodeInv(src []byte) (Inv, []byte, error) {
	if len(src) < invWireSize {
		return Inv{}, nil, fmt.Errorf("wire: short inv, need %d bytes, have %d", invWireSize, len(src))
	}
	inv := Inv{Kind: InvKind(binary.BigEndian.Uint32(src[0:4]))}
	copy(inv.Hash[:], src[4:invWireSize])
	return inv, src[invWireSize:], nil
}

// InvPayload is the body of an INV message: the fork the inventory belongs
// to, plus the advertised objects.
type InvPayload struct {
	ForkID [32]byte
	Items  []Inv
}

// EncodeInvPayload serializes an InvPayload: fork id, then a 4-byte
// big-endian count, then each Inv in order. The caller must ensure
// len(p.Items) <= MaxInvVectorLen before calling.
func EncodeInvPayload(p InvPayload) ([]byte, error) {
	if len(p.Items) > MaxInvVectorLen {
		return nil, fmt.Errorf("wire: inv vector of %d exceeds max %d", len(p.Items), MaxInvVectorLen)
	}
	out := make([]byte, 0, 32+4+len(p.Items)*invWireSize)
	out = append(out, p.ForkID[:]...)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(p.Items)))
	out = append(out, countBuf[:]...)
	for _, inv := range p.Items {
		out = EncodeInv(out, inv)
	}
	return out, nil
}

// DecodeInvPayload parses an INV message body, rejecting vectors longer
// than MaxInvVectorLen.
func DecodeInvPayload(buf []byte) (InvPayload, error) {
	if len(buf) < 36 {
		return InvPayload{}, fmt.Errorf("wire: inv payload too short")
	}
	var p InvPayload
	copy(p.ForkID[:], buf[0:32])
	count := binary.BigEndian.Uint32(buf[32:36])
	if count > MaxInvVectorLen {
		return InvPayload{}, fmt.Errorf("wire: inv count %d exceeds max %d", count, MaxInvVectorLen)
	}
	rest := buf[36:]
	p.Items = make([]Inv, 0, count)
	for i := uint32(0); i < count; i++ {
		var inv Inv
		var err error
		inv, rest, err = DecodeInv(rest)
		if err != nil {
			return InvPayload{}, err
		}
		p.Items = append(p.Items, inv)
	}
	return p, nil
}
