package core

import (
	"hash/fnv"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/synledger/fullnode/pkg/wire"
)

// peerNonceFromID derives a stable PeerNonce from a libp2p peer identity.
// A real deployment could instead exchange an explicit nonce in HELLO;
// this is deterministic and collision-resistant enough for routing
// schedule/peer-state lookups.
func peerNonceFromID(id peer.ID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func hashesToWireInv(hashes [][32]byte) []wire.Inv {
	out := make([]wire.Inv, len(hashes))
	for i, h := range hashes {
		out[i] = wire.Inv{Kind: InvBlock, Hash: h}
	}
	return out
}

func forksToBytes(forks []ForkID) []byte {
	out := make([]byte, 0, len(forks)*32)
	for _, f := range forks {
		out = append(out, f[:]...)
	}
	return out
}

func wireInvHashes(invs []wire.Inv) [][32]byte {
	out := make([][32]byte, len(invs))
	for i, inv := range invs {
		out[i] = inv.Hash
	}
	return out
}

// rlpTx/rlpBlock mirror Transaction/Block in a shape RLP can encode
// directly; the domain types carry no RLP tags of their own since they
// also serve as the scheduler's in-memory representation.
type rlpTx struct {
	Hash        [32]byte
	IsMint      bool
	AnchorBlock [32]byte
	Inputs      []TxOutpoint
	Outputs     []TxOut
	SendTo      [32]byte
	Timestamp   uint64
	Size        uint32
}

type rlpBlock struct {
	Hash   [32]byte
	Prev   [32]byte
	Height uint32
	Time   uint64
	Mint   uint8
	Txs    []rlpTx
}

func toRLPTx(tx Transaction) rlpTx {
	return rlpTx(tx)
}

func fromRLPTx(r rlpTx) Transaction {
	return Transaction(r)
}

func encodeTxPlaceholder(tx Transaction) []byte {
	b, err := rlp.EncodeToBytes(toRLPTx(tx))
	if err != nil {
		return nil
	}
	return b
}

func decodeTxPlaceholder(b []byte) Transaction {
	var r rlpTx
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return Transaction{}
	}
	return fromRLPTx(r)
}

func encodeBlockPlaceholder(block Block) []byte {
	txs := make([]rlpTx, len(block.Txs))
	for i, tx := range block.Txs {
		txs[i] = toRLPTx(tx)
	}
	r := rlpBlock{Hash: block.Hash, Prev: block.Prev, Height: block.Height, Time: block.Time, Mint: uint8(block.Mint), Txs: txs}
	b, err := rlp.EncodeToBytes(r)
	if err != nil {
		return nil
	}
	return b
}

func decodeBlockPlaceholder(b []byte) Block {
	var r rlpBlock
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return Block{}
	}
	txs := make([]Transaction, len(r.Txs))
	for i, t := range r.Txs {
		txs[i] = fromRLPTx(t)
	}
	return Block{Hash: r.Hash, Prev: r.Prev, Height: r.Height, Time: r.Time, Mint: MintType(r.Mint), Txs: txs}
}
