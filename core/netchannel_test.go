package core

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/synledger/fullnode/pkg/wire"
)

func recvEvent(t *testing.T, n *NetChannel) wire.OutgoingPeerEvent {
	t.Helper()
	select {
	case ev := <-n.Outbound():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for an outbound event")
	}
	return wire.OutgoingPeerEvent{}
}

func TestNetChannelPeerActiveSendsGetBlocks(t *testing.T) {
	genesis := ForkID(hashOf(1))
	chain := NewMemChain(genesis)
	chain.SeedGenesis(Block{Hash: [32]byte(genesis)})
	n := NewNetChannel(RoleBackbone, genesis, chain, chain, chain, nil)

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: peer.ID("peerA")})

	ev := recvEvent(t, n)
	if ev.Kind != wire.EvSendGetBlocks {
		t.Fatalf("expected a GetBlocks event on peer activation, got %v", ev.Kind)
	}
}

func TestNetChannelSubscribeNonPrimaryChannelMisbehaves(t *testing.T) {
	genesis := ForkID(hashOf(1))
	other := ForkID(hashOf(2))
	chain := NewMemChain(genesis)

	var flagged []MisbehaviorReason
	n := NewNetChannel(RoleBackbone, genesis, chain, chain, chain, func(_ PeerNonce, reason MisbehaviorReason) {
		flagged = append(flagged, reason)
	})

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: peer.ID("peerA")})
	recvEvent(t, n) // drain the GetBlocks event from activation

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerSubscribe, Peer: peer.ID("peerA"), ForkID: [32]byte(other)})
	if len(flagged) != 1 || flagged[0] != MisbehaviorDDOS {
		t.Fatalf("subscribing on a non-primary channel should misbehave, got %v", flagged)
	}
}

func TestNetChannelInvToTxDeliveryRoundTrip(t *testing.T) {
	genesis := ForkID(hashOf(1))
	chain := NewMemChain(genesis)

	mint := Transaction{Hash: hashOf(100), IsMint: true, Outputs: []TxOut{{Dest: hashOf(200), Value: 1000}}}
	chain.SeedGenesis(Block{Hash: [32]byte(genesis), Mint: MintPoW, Txs: []Transaction{mint}})

	pool := NewTxPool(chain, chain)
	chain.AttachTxPool(pool)

	n := NewNetChannel(RoleBackbone, genesis, chain, chain, chain, nil)
	p := peer.ID("peerA")

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: p})
	recvEvent(t, n) // GetBlocks from activation

	spend := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mint.Hash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        10,
	}

	n.Dispatch(wire.IncomingPeerEvent{
		Kind:   wire.EvPeerInv,
		Peer:   p,
		ForkID: [32]byte(genesis),
		Inv:    wire.InvPayload{ForkID: [32]byte(genesis), Items: []wire.Inv{{Kind: InvTx, Hash: spend.Hash}}},
	})

	msgRsp := recvEvent(t, n)
	if msgRsp.Kind != wire.EvSendMsgRsp || msgRsp.MsgRsp.Result != wire.TxInvReceived {
		t.Fatalf("expected a TX_INV_RECEIVED ack, got kind=%v result=%v", msgRsp.Kind, msgRsp.MsgRsp.Result)
	}
	getData := recvEvent(t, n)
	if getData.Kind != wire.EvSendGetData || getData.GetData.Hash != spend.Hash {
		t.Fatalf("expected the new tx inv to be scheduled back as GetData, got %+v", getData)
	}

	n.Dispatch(wire.IncomingPeerEvent{
		Kind:   wire.EvPeerTx,
		Peer:   p,
		ForkID: [32]byte(genesis),
		Tx:     encodeTxPlaceholder(spend),
	})

	if !pool.Exists(spend.Hash) {
		t.Fatalf("expected the delivered transaction to land in the pool")
	}
}

func TestNetChannelInvIgnoresAlreadyConfirmedTx(t *testing.T) {
	genesis := ForkID(hashOf(1))
	chain := NewMemChain(genesis)
	confirmed := Transaction{Hash: hashOf(55)}
	chain.SeedGenesis(Block{Hash: [32]byte(genesis), Txs: []Transaction{confirmed}})

	n := NewNetChannel(RoleBackbone, genesis, chain, chain, chain, nil)
	p := peer.ID("peerA")
	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: p})
	recvEvent(t, n)

	n.Dispatch(wire.IncomingPeerEvent{
		Kind:   wire.EvPeerInv,
		Peer:   p,
		ForkID: [32]byte(genesis),
		Inv:    wire.InvPayload{ForkID: [32]byte(genesis), Items: []wire.Inv{{Kind: InvTx, Hash: confirmed.Hash}}},
	})

	select {
	case ev := <-n.Outbound():
		t.Fatalf("expected no outbound event for an already-confirmed tx, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNetChannelPeerDeactiveRemovesPeer(t *testing.T) {
	genesis := ForkID(hashOf(1))
	chain := NewMemChain(genesis)
	chain.SeedGenesis(Block{Hash: [32]byte(genesis)})
	n := NewNetChannel(RoleBackbone, genesis, chain, chain, chain, nil)
	p := peer.ID("peerA")

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: p})
	recvEvent(t, n)

	n.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerDeactive, Peer: p})

	n.peersMu.RLock()
	_, stillThere := n.peers[PeerNonce(peerNonceFromID(p))]
	n.peersMu.RUnlock()
	if stillThere {
		t.Fatalf("expected peer to be removed from NetChannel's peer map on deactivation")
	}
}
