package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SyncTxInvStatus tracks where a peer sits in the tx-inventory broadcast
// round-trip for one fork.
type SyncTxInvStatus uint8

const (
	TxInvInit SyncTxInvStatus = iota
	TxInvWaitReceived
	TxInvWaitComplete
)

// defaultSingleSynCount is the per-round tx-inv batch size, half of the
// wire inventory cap so a single TXINV round-trip never risks tripping
// the peer's own MAX_INV_COUNT_WIRE limit on the reply.
const defaultSingleSynCount = MaxInvCountWire / 2

// PeerForkState is a peer's per-subscribed-fork bookkeeping, from §4.2
// "Per-peer state".
type PeerForkState struct {
	Synchronized    bool
	SyncTxInvStatus SyncTxInvStatus

	SendTime int64
	RecvTime int64

	SingleSynCount    int
	WaitGetTxComplete bool

	knownTxCache *lru.Cache[[32]byte, struct{}]
}

func newPeerForkState() *PeerForkState {
	cache, _ := lru.New[[32]byte, struct{}](MaxPeerTxInv)
	return &PeerForkState{
		SingleSynCount: defaultSingleSynCount,
		knownTxCache:   cache,
	}
}

// KnowsTx reports whether the peer is already known to have txid.
func (s *PeerForkState) KnowsTx(txid [32]byte) bool {
	_, ok := s.knownTxCache.Get(txid)
	return ok
}

// RememberTx records that the peer now knows about txid, evicting the
// least recently used entry once the per-peer cache reaches
// MAX_PEER_TX_INV, per the Open Question decision bounding memory to
// O(MAX_PEER_TX_INV).
func (s *PeerForkState) RememberTx(txid [32]byte) {
	s.knownTxCache.Add(txid, struct{}{})
}

// PeerState is NetChannel's record for one connected peer, across every
// fork it has subscribed to.
type PeerState struct {
	Nonce    PeerNonce
	ID       peer.ID
	Addr     string
	Services uint64

	Forks map[ForkID]*PeerForkState
}

func newPeerState(nonce PeerNonce, id peer.ID, addr string, services uint64) *PeerState {
	return &PeerState{
		Nonce:    nonce,
		ID:       id,
		Addr:     addr,
		Services: services,
		Forks:    make(map[ForkID]*PeerForkState),
	}
}

func (p *PeerState) forkState(fork ForkID) *PeerForkState {
	fs, ok := p.Forks[fork]
	if !ok {
		fs = newPeerForkState()
		p.Forks[fork] = fs
	}
	return fs
}
