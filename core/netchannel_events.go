package core

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/synledger/fullnode/pkg/wire"
)

func coreToWireInv(invs []Inv) []wire.Inv {
	out := make([]wire.Inv, len(invs))
	for i, inv := range invs {
		out[i] = wire.Inv{Kind: inv.Kind, Hash: inv.Hash}
	}
	return out
}

func wireToCoreInv(invs []wire.Inv) []Inv {
	out := make([]Inv, len(invs))
	for i, inv := range invs {
		out[i] = Inv{Kind: inv.Kind, Hash: inv.Hash}
	}
	return out
}

// buildGetBlocksLocator assembles the locator to send nonce for fork,
// consulting the negotiated common-ancestor state in Schedule rather than
// always asking the chain for a fresh sparse locator from the tip: once
// LocatorInvBlock has recorded a shared block for this peer (set from a
// resolved block-inv in handleInv), a single-hash locator pointing at it
// is cheaper and more precise than a full re-derivation. Otherwise it
// falls back to the chain-derived locator, extended with the previous
// round's LocatorDepthHash so successive rounds dig progressively deeper
// instead of restarting from the tip every time.
func (n *NetChannel) buildGetBlocksLocator(fork ForkID, nonce PeerNonce) [][32]byte {
	sched := n.scheduleFor(fork)
	if _, hash, ok := sched.LocatorInvBlock(nonce); ok && hash != ([32]byte{}) {
		return [][32]byte{hash}
	}

	locator := n.chain.GetBlockLocator(fork, 0, MaxGetBlocksCount)
	if depthHash, ok := sched.LocatorDepthHash(nonce); ok && depthHash != ([32]byte{}) {
		locator = append(locator, depthHash)
	}
	if len(locator) > 0 {
		sched.SetLocatorDepthHash(nonce, locator[len(locator)-1])
	}
	return locator
}

// handlePeerActive registers a newly connected peer, seeds a GetBlocks for
// the primary fork when in scope, and advertises every non-primary fork
// this node currently owns via Subscribe.
func (n *NetChannel) handlePeerActive(ev wire.IncomingPeerEvent) {
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	n.peersMu.Lock()
	n.peers[nonce] = newPeerState(nonce, ev.Peer, "", 0)
	n.peersMu.Unlock()

	if n.inScope(n.primaryFork) {
		sched := n.scheduleFor(n.primaryFork)
		sched.AddPeer(nonce)
		locator := n.buildGetBlocksLocator(n.primaryFork, nonce)
		n.send(wire.OutgoingPeerEvent{
			Kind:      wire.EvSendGetBlocks,
			Peer:      ev.Peer,
			ForkID:    n.primaryFork,
			GetBlocks: hashesToWireInv(locator),
		})
	}

	n.schedulesMu.Lock()
	var owned []ForkID
	for fork := range n.schedules {
		if fork != n.primaryFork {
			owned = append(owned, fork)
		}
	}
	n.schedulesMu.Unlock()
	if len(owned) > 0 {
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendSubscribe, Peer: ev.Peer, Roles: forksToBytes(owned)})
	}
}

// handlePeerDeactive removes the peer from every schedule it participated
// in, re-scheduling any peer that takes over its assignments.
func (n *NetChannel) handlePeerDeactive(ev wire.IncomingPeerEvent) {
	nonce := PeerNonce(peerNonceFromID(ev.Peer))

	n.schedulesMu.Lock()
	schedules := make([]*Schedule, 0, len(n.schedules))
	for _, s := range n.schedules {
		schedules = append(schedules, s)
	}
	n.schedulesMu.Unlock()

	for _, s := range schedules {
		s.RemovePeer(nonce)
	}

	n.peersMu.Lock()
	delete(n.peers, nonce)
	n.peersMu.Unlock()
}

// handleSubscribe applies Subscribe/Unsubscribe, which is only legal on
// the primary-fork channel.
func (n *NetChannel) handleSubscribe(ev wire.IncomingPeerEvent, subscribe bool) {
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	if ev.ForkID != n.primaryFork {
		n.misbehave(nonce, MisbehaviorDDOS)
		return
	}

	n.peersMu.RLock()
	peer, ok := n.peers[nonce]
	n.peersMu.RUnlock()
	if !ok {
		return
	}

	for i := 0; i < len(ev.Roles); i += 32 {
		var fork ForkID
		copy(fork[:], ev.Roles[i:])
		if !n.inScope(fork) {
			n.misbehave(nonce, MisbehaviorDDOS)
			continue
		}
		if subscribe {
			peer.forkState(fork).Synchronized = false
			n.markUnsynced(fork, nonce)
			if sched, ok := n.existingScheduleFor(fork); ok {
				sched.AddPeer(nonce)
				locator := n.buildGetBlocksLocator(fork, nonce)
				n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetBlocks, Peer: ev.Peer, ForkID: fork, GetBlocks: hashesToWireInv(locator)})
			}
		} else {
			delete(peer.Forks, fork)
			n.clearUnsynced(fork, nonce)
		}
	}
}

// handleInv applies an Inv announcement: tx-invs are admitted directly;
// block-invs are checked against the known chain and either recorded as a
// shared locator or admitted, subject to the height-ahead boundary.
func (n *NetChannel) handleInv(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	if len(ev.Inv.Items) > MaxInvCountWire {
		n.misbehave(PeerNonce(peerNonceFromID(ev.Peer)), MisbehaviorDDOS)
		return
	}

	sched := n.scheduleFor(ev.ForkID)
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	_, _, lastHeight, _, _ := n.chain.GetLastBlock(ev.ForkID)

	anyTxReceived := false
	newBlockInvs := 0
	knownBlockInvs := 0

	for _, wi := range ev.Inv.Items {
		inv := fromWireInv(wi)
		switch inv.Kind {
		case InvTx:
			if n.chain.ExistsTx(inv.Hash) {
				continue
			}
			if sched.AddNewInv(inv, nonce) {
				anyTxReceived = true
			}
		case InvBlock:
			if loc, ok := n.chain.GetBlockLocation(inv.Hash); ok {
				sched.SetLocatorInvBlock(nonce, loc.Height, inv.Hash)
				knownBlockInvs++
				continue
			}
			if lastHeight > 0 && estimatedHeight(inv.Hash) > lastHeight+MaxPeerBlockInv/2 {
				continue
			}
			if sched.AddNewInv(inv, nonce) {
				newBlockInvs++
			}
		}
	}

	if anyTxReceived {
		n.send(wire.OutgoingPeerEvent{
			Kind:   wire.EvSendMsgRsp,
			Peer:   ev.Peer,
			ForkID: ev.ForkID,
			MsgRsp: wire.MsgRsp{ReqMsgType: wire.NewMessageType(wire.DataChannel, wire.CmdInv), Result: wire.TxInvReceived},
		})
	}

	deadline := sched.NextGetBlocksDeadline(nonce)
	now := n.now()
	if newBlockInvs >= MaxGetBlocksCount {
		sched.SetNextGetBlocksDeadline(nonce, now+GetBlocksIntervalDef/2)
	} else if deadline == 0 {
		sched.SetNextGetBlocksDeadline(nonce, now+GetBlocksIntervalDef)
	}

	n.runBlockSchedule(ev.ForkID, nonce, ev.Peer)
	n.runTxSchedule(ev.ForkID, nonce, ev.Peer)
}

// estimatedHeight is a placeholder projection used only to bound how far
// ahead an unknown block-inv may claim to be; a real node derives this
// from the hash's embedded height metadata or a PoW difficulty estimate.
func estimatedHeight(hash [32]byte) uint32 { return 0 }

func (n *NetChannel) runBlockSchedule(fork ForkID, nonce PeerNonce, to peer.ID) {
	sched, ok := n.existingScheduleFor(fork)
	if !ok {
		return
	}
	res := sched.ScheduleBlockInv(nonce, MaxGetBlocksCount)
	if len(res.Items) > 0 {
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetData, Peer: to, ForkID: fork, GetData: res.Items[0].wire()})
		for _, inv := range res.Items[1:] {
			n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetData, Peer: to, ForkID: fork, GetData: inv.wire()})
		}
	}
	if res.MissingPrev {
		locator := n.buildGetBlocksLocator(fork, nonce)
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetBlocks, Peer: to, ForkID: fork, GetBlocks: hashesToWireInv(locator)})
	}
}

func (n *NetChannel) runTxSchedule(fork ForkID, nonce PeerNonce, to peer.ID) {
	sched, ok := n.existingScheduleFor(fork)
	if !ok {
		return
	}
	res := sched.ScheduleTxInv(nonce, MaxGetBlocksCount)
	for _, inv := range res.Items {
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetData, Peer: to, ForkID: fork, GetData: inv.wire()})
	}
}

// handleGetData serves a tx body from the chain, falling back to the
// schedule's received txs, and a block body from the schedule's received
// blocks only; the tx pool and confirmed chain blocks are not consulted.
// Misses are accumulated into a single GetFail reply.
func (n *NetChannel) handleGetData(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	sched := n.scheduleFor(ev.ForkID)
	var fails []Inv
	inv := fromWireInv(ev.GetData)
	switch inv.Kind {
	case InvTx:
		if tx, ok := n.chain.GetTransaction(inv.Hash); ok {
			n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendTx, Peer: ev.Peer, ForkID: ev.ForkID, Tx: encodeTxPlaceholder(tx)})
			return
		}
		if tx, _, ok := sched.GetTransaction(inv.Hash); ok {
			n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendTx, Peer: ev.Peer, ForkID: ev.ForkID, Tx: encodeTxPlaceholder(tx)})
			return
		}
		fails = append(fails, inv)
	case InvBlock:
		if block, _, ok := sched.GetBlock(inv.Hash); ok {
			n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendBlock, Peer: ev.Peer, ForkID: ev.ForkID, Block: encodeBlockPlaceholder(block)})
			return
		}
		fails = append(fails, inv)
	}
	if len(fails) > 0 {
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetFail, Peer: ev.Peer, ForkID: ev.ForkID, Inv: wire.InvPayload{ForkID: ev.ForkID, Items: coreToWireInv(fails)}})
	}
}

// handleGetBlocks resolves a peer's locator into a chain of successor
// hashes, capped at MAX_GETBLOCKS_COUNT.
func (n *NetChannel) handleGetBlocks(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	locator := wireInvHashes(ev.GetBlocks)
	hashes := n.chain.GetBlockInv(ev.ForkID, locator, MaxGetBlocksCount)

	if len(hashes) == 0 {
		result := wire.GetBlocksEmpty
		_, lastHeight, _, _, ok := n.chain.GetLastBlock(ev.ForkID)
		_ = lastHeight
		if ok && localHeadInLocator(locator, n.chain, ev.ForkID) {
			result = wire.GetBlocksEqual
		}
		n.send(wire.OutgoingPeerEvent{
			Kind:   wire.EvSendMsgRsp,
			Peer:   ev.Peer,
			ForkID: ev.ForkID,
			MsgRsp: wire.MsgRsp{ReqMsgType: wire.NewMessageType(wire.DataChannel, wire.CmdGetBlocks), Result: result},
		})
		return
	}

	items := make([]Inv, len(hashes))
	for i, h := range hashes {
		items[i] = Inv{Kind: InvBlock, Hash: h}
	}
	n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendInv, Peer: ev.Peer, ForkID: ev.ForkID, Inv: wire.InvPayload{ForkID: ev.ForkID, Items: coreToWireInv(items)}})
}

func localHeadInLocator(locator [][32]byte, chain BlockChain, fork ForkID) bool {
	head, _, _, _, ok := chain.GetLastBlock(fork)
	if !ok {
		return false
	}
	for _, h := range locator {
		if h == head {
			return true
		}
	}
	return false
}

// handleTx applies an incoming transaction body: scheduler acceptance,
// mint filtering, and orphan-chain bookkeeping on a missing anchor.
func (n *NetChannel) handleTx(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	sched := n.scheduleFor(ev.ForkID)
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	tx := decodeTxPlaceholder(ev.Tx)

	if !sched.ReceiveTx(nonce, tx.Hash, tx) {
		return
	}
	if tx.IsMint {
		sched.InvalidateTx(tx.Hash)
		return
	}

	if loc, ok := n.chain.GetBlockLocation(tx.AnchorBlock); ok && loc.Fork == ev.ForkID {
		errno := n.dispatcher.AddNewTx(tx, nonce)
		switch errno {
		case ErrOK, ErrAlreadyHave, ErrTransactionConflictingInput:
			sched.InvalidateTx(tx.Hash)
		case ErrMissingPrev:
			for _, in := range tx.Inputs {
				sched.AddOrphanTxPrev(tx.Hash, in.TxID)
				if sched.CheckPrevTxInv(Inv{Kind: InvTx, Hash: in.TxID}) {
					sched.AddNewInv(Inv{Kind: InvTx, Hash: in.TxID}, nonce)
				}
			}
		default:
			peers := sched.InvalidateTx(tx.Hash)
			n.misbehave(nonce, MisbehaviorDDOS)
			for _, p := range peers {
				n.misbehave(p, MisbehaviorDDOS)
			}
		}
		return
	}

	sched.InvalidateTx(tx.Hash)
}

// handleBlock applies an incoming block body, walking the orphan index
// forward when the block completes a previously-orphaned chain.
func (n *NetChannel) handleBlock(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	sched := n.scheduleFor(ev.ForkID)
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	block := decodeBlockPlaceholder(ev.Block)

	if !sched.ReceiveBlock(nonce, block.Hash, block) {
		return
	}

	if n.chain.VerifyRepeatBlock(ev.ForkID, block) {
		if sched.SetRepeatBlock(nonce, block.Height, block.Hash) {
			n.misbehave(nonce, MisbehaviorRepeatMint)
		}
		return
	}

	if loc, ok := n.chain.GetBlockLocation(block.Prev); ok && loc.Fork == ev.ForkID {
		n.addBlockAndDescend(ev.ForkID, nonce, block)
		return
	}

	sched.AddOrphanBlockPrev(block.Hash, block.Prev)
}

func (n *NetChannel) addBlockAndDescend(fork ForkID, nonce PeerNonce, block Block) {
	sched := n.scheduleFor(fork)
	errno := n.dispatcher.AddNewBlock(block, nonce)
	switch errno {
	case ErrOK:
		n.BroadcastBlockInv(fork, block.Hash)
	case ErrAlreadyHave:
	case ErrMissingPrev:
		sched.AddOrphanBlockPrev(block.Hash, block.Prev)
		return
	default:
		peers := sched.InvalidateBlock(block.Hash)
		n.misbehave(nonce, MisbehaviorDDOS)
		for _, p := range peers {
			n.misbehave(p, MisbehaviorDDOS)
		}
		return
	}

	for _, childHash := range sched.OrphanBlockChildren(block.Hash) {
		if childBlock, _, ok := sched.GetBlock(childHash); ok {
			n.addBlockAndDescend(fork, nonce, childBlock)
		}
	}
}

// handleGetFail cancels each assignment so the scheduler can retry through
// a different known peer on the next round.
func (n *NetChannel) handleGetFail(ev wire.IncomingPeerEvent) {
	if !n.inScope(ev.ForkID) {
		return
	}
	sched := n.scheduleFor(ev.ForkID)
	nonce := PeerNonce(peerNonceFromID(ev.Peer))
	for _, wi := range ev.Inv.Items {
		sched.CancelAssignedInv(nonce, fromWireInv(wi))
	}
}

// handleMsgRsp applies the per-result follow-up described in §4.2.
func (n *NetChannel) handleMsgRsp(ev wire.IncomingPeerEvent) {
	sched := n.scheduleFor(ev.ForkID)
	nonce := PeerNonce(peerNonceFromID(ev.Peer))

	switch ev.MsgRsp.Result {
	case wire.TxInvComplete:
		n.peersMu.RLock()
		peer, ok := n.peers[nonce]
		n.peersMu.RUnlock()
		if ok {
			peer.forkState(ev.ForkID).SyncTxInvStatus = TxInvInit
		}
	case wire.GetBlocksEmpty:
		sched.ClearLocatorInvBlock(nonce)
		locator := n.buildGetBlocksLocator(ev.ForkID, nonce)
		n.send(wire.OutgoingPeerEvent{Kind: wire.EvSendGetBlocks, Peer: ev.Peer, ForkID: ev.ForkID, GetBlocks: hashesToWireInv(locator)})
	case wire.GetBlocksEqual:
		sched.SetNextGetBlocksDeadline(nonce, n.now()+GetBlocksIntervalEqual)
	default:
	}
}
