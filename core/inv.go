package core

import (
	"github.com/holiman/uint256"

	"github.com/synledger/fullnode/pkg/wire"
)

// InvKind mirrors wire.InvKind inside the scheduler's domain so Schedule
// does not need to import wire for its hot path.
type InvKind = wire.InvKind

const (
	InvTx    = wire.InvKindTx
	InvBlock = wire.InvKindBlock
)

// Inv identifies one object a peer may advertise, fetch, or deliver.
// Ordered by (Kind, Hash): Less matches the ordering required to keep
// per-peer inv lists and scheduler maps deterministic.
type Inv struct {
	Kind InvKind
	Hash [32]byte
}

// Less reports whether inv sorts before other.
func (inv Inv) Less(other Inv) bool {
	if inv.Kind != other.Kind {
		return inv.Kind < other.Kind
	}
	a := uint256.NewInt(0).SetBytes(inv.Hash[:])
	b := uint256.NewInt(0).SetBytes(other.Hash[:])
	return a.Lt(b)
}

func (inv Inv) wire() wire.Inv { return wire.Inv{Kind: inv.Kind, Hash: inv.Hash} }

func fromWireInv(w wire.Inv) Inv { return Inv{Kind: w.Kind, Hash: w.Hash} }

// PeerNonce identifies one connected peer. A value type, never a pointer,
// per the arena/index-based representation called for instead of
// pointer-linked peer objects.
type PeerNonce uint64

// ForkID identifies an independent chain branch by its genesis-derived
// 256-bit hash.
type ForkID [32]byte
