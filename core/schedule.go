package core

import (
	"sync"
	"time"
)

// Scheduler caps and timeouts, per §3.
const (
	MaxInvCount     = 262144
	MaxPeerBlockInv = 1024
	MaxPeerTxInv    = 262144
	MaxRegetData    = 10
	MaxInvWait      = int64(3600)
	MaxObjWait      = int64(7200)
	absoluteTimeout = 12 * MaxInvWait
)

// localPoWCacheDepth bounds how many recent heights the local-mining cache
// retains; add_cache_local_pow_block evicts anything older.
const localPoWCacheDepth = 32

// BlockInvResult is the result of one schedule_block_inv round.
type BlockInvResult struct {
	Items       []Inv
	MissingPrev bool
	Empty       bool
}

// TxInvResult is the result of one schedule_tx_inv round.
type TxInvResult struct {
	Items       []Inv
	ReceivedAll bool
}

// Schedule is the per-fork inventory state machine described in §4.1. All
// mutation goes through its methods, each of which holds the Schedule's own
// mutex for its whole duration.
type Schedule struct {
	mu sync.Mutex

	fork ForkID
	now  func() int64

	invs    map[Inv]*invState
	peerInv map[PeerNonce]*PeerInv

	orphanBlocks  *OrphanIndex[[32]byte]
	orphanTxs     *OrphanIndex[[32]byte]
	missingPrevTx map[[32]byte]struct{}

	refBlocks map[[32]byte][][32]byte

	recvHeight    map[uint32][32]byte // first block hash received at a height; recorded, not read by any method
	localPoWCache map[uint32][][32]byte
}

// NewSchedule constructs an empty Schedule for one fork.
func NewSchedule(fork ForkID) *Schedule {
	return &Schedule{
		fork:          fork,
		now:           func() int64 { return time.Now().Unix() },
		invs:          make(map[Inv]*invState),
		peerInv:       make(map[PeerNonce]*PeerInv),
		orphanBlocks:  NewOrphanIndex[[32]byte](),
		orphanTxs:     NewOrphanIndex[[32]byte](),
		missingPrevTx: make(map[[32]byte]struct{}),
		refBlocks:     make(map[[32]byte][][32]byte),
		recvHeight:    make(map[uint32][32]byte),
		localPoWCache: make(map[uint32][][32]byte),
	}
}

// AddPeer registers nonce with the schedule.
func (s *Schedule) AddPeer(nonce PeerNonce) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peerInv[nonce]; !ok {
		s.peerInv[nonce] = newPeerInv()
	}
}

// RemovePeer deregisters nonce, dropping it from every inv it knew about,
// and returns the other peers that know an inv whose assignment nonce held,
// so their schedules can be run again.
func (s *Schedule) RemovePeer(nonce PeerNonce) []PeerNonce {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ok := s.peerInv[nonce]
	if !ok {
		return nil
	}

	reschedule := make(map[PeerNonce]struct{})
	for _, kind := range []InvKind{InvTx, InvBlock} {
		for _, h := range pi.setFor(kind).InOrder() {
			inv := Inv{Kind: kind, Hash: h}
			st, ok := s.invs[inv]
			if !ok {
				continue
			}
			hadAssignment := st.hasAssigned && st.assignedPeer == nonce
			st.removeKnownPeer(nonce)
			if hadAssignment {
				for other := range st.knownPeers {
					reschedule[other] = struct{}{}
				}
			}
			if st.isEmpty() {
				delete(s.invs, inv)
				if kind == InvBlock {
					s.orphanBlocks.Forget(h)
				} else {
					s.orphanTxs.Forget(h)
					delete(s.missingPrevTx, h)
				}
			}
		}
	}
	delete(s.peerInv, nonce)

	out := make([]PeerNonce, 0, len(reschedule))
	for p := range reschedule {
		out = append(out, p)
	}
	return out
}

// AddNewInv records that nonce advertised inv. Returns false if the global
// or per-peer-per-kind cap would be exceeded.
func (s *Schedule) AddNewInv(inv Inv, nonce PeerNonce) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ok := s.peerInv[nonce]
	if !ok {
		pi = newPeerInv()
		s.peerInv[nonce] = pi
	}

	st, exists := s.invs[inv]
	if !exists && len(s.invs) >= MaxInvCount {
		return false
	}

	set := pi.setFor(inv.Kind)
	perPeerCap := MaxPeerTxInv
	if inv.Kind == InvBlock {
		perPeerCap = MaxPeerBlockInv
	}
	if !set.Contains(inv.Hash) && set.Len() >= perPeerCap {
		return false
	}

	now := s.now()
	if !exists {
		st = newInvState(nonce, now)
		s.invs[inv] = st
	} else {
		st.addKnownPeer(nonce)
	}
	set.Insert(inv.Hash)
	return true
}

// ReceiveBlock records a block body delivered by nonce. Succeeds only if
// nonce currently holds the assignment and the block was not already
// received.
func (s *Schedule) ReceiveBlock(nonce PeerNonce, hash [32]byte, block Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := Inv{Kind: InvBlock, Hash: hash}
	st, ok := s.invs[inv]
	if !ok || !st.hasAssigned || st.assignedPeer != nonce || st.receivedBlock != nil {
		return false
	}

	now := s.now()
	blockCopy := block
	st.receivedBlock = &blockCopy
	st.receivedTime = now
	st.clearTime = now + MaxObjWait
	st.hasAssigned = false
	if pi, ok := s.peerInv[nonce]; ok {
		delete(pi.assignedBlock, hash)
	}

	if block.Mint == MintPoW {
		if _, seen := s.recvHeight[block.Height]; !seen {
			s.recvHeight[block.Height] = hash
		}
	}
	return true
}

// ReceiveTx records a transaction body delivered by nonce, symmetric to
// ReceiveBlock, and clears the tx out of missing_prev_tx.
func (s *Schedule) ReceiveTx(nonce PeerNonce, txid [32]byte, tx Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := Inv{Kind: InvTx, Hash: txid}
	st, ok := s.invs[inv]
	if !ok || !st.hasAssigned || st.assignedPeer != nonce || st.receivedTx != nil {
		return false
	}

	now := s.now()
	txCopy := tx
	st.receivedTx = &txCopy
	st.receivedTime = now
	st.clearTime = now + MaxObjWait
	st.hasAssigned = false
	if pi, ok := s.peerInv[nonce]; ok {
		delete(pi.assignedTx, txid)
	}
	delete(s.missingPrevTx, txid)
	return true
}

// GetBlock returns a previously received block body and the peer that
// supplied it.
func (s *Schedule) GetBlock(hash [32]byte) (Block, PeerNonce, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.invs[Inv{Kind: InvBlock, Hash: hash}]
	if !ok || st.receivedBlock == nil {
		return Block{}, 0, false
	}
	return *st.receivedBlock, st.assignedPeer, true
}

// GetTransaction returns a previously received transaction body and the
// peer that supplied it.
func (s *Schedule) GetTransaction(hash [32]byte) (Transaction, PeerNonce, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.invs[Inv{Kind: InvTx, Hash: hash}]
	if !ok || st.receivedTx == nil {
		return Transaction{}, 0, false
	}
	return *st.receivedTx, st.assignedPeer, true
}

// KnownPeers returns the set of peer nonces that have advertised inv, for
// callers (e.g. broadcast) that must skip peers already known to hold it.
func (s *Schedule) KnownPeers(inv Inv) map[PeerNonce]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.invs[inv]
	if !ok {
		return nil
	}
	out := make(map[PeerNonce]struct{}, len(st.knownPeers))
	for p := range st.knownPeers {
		out[p] = struct{}{}
	}
	return out
}

// AddOrphanBlockPrev records that child's immediate predecessor is parent.
func (s *Schedule) AddOrphanBlockPrev(child, parent [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphanBlocks.AddEdge(parent, child)
}

// AddOrphanTxPrev records that child's immediate predecessor is parent.
func (s *Schedule) AddOrphanTxPrev(child, parent [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphanTxs.AddEdge(parent, child)
}

// OrphanBlockChildren returns the direct orphan children of parent.
func (s *Schedule) OrphanBlockChildren(parent [32]byte) [][32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orphanBlocks.Children(parent)
}

// OrphanTxChildren returns the direct orphan children of parent.
func (s *Schedule) OrphanTxChildren(parent [32]byte) [][32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orphanTxs.Children(parent)
}

// CheckPrevTxInv reports whether the tx inv is known to the schedule. If it
// is known but not yet received, it is additionally recorded in
// missing_prev_tx so the tx path can prioritize closing the orphan chain.
func (s *Schedule) CheckPrevTxInv(inv Inv) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.invs[inv]
	if !ok {
		return false
	}
	if st.receivedTx == nil {
		s.missingPrevTx[inv.Hash] = struct{}{}
	}
	return true
}

// InvalidateBlock deletes the block inv and all descendants reachable
// through the orphan index, returning the peers that had supplied any of
// them so the caller may penalize them.
func (s *Schedule) InvalidateBlock(hash [32]byte) []PeerNonce {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.orphanBlocks.RemoveBranch(hash)
	return s.purgeInvs(InvBlock, removed)
}

// InvalidateTx deletes the tx inv and all descendants reachable through the
// orphan index, returning the peers that had supplied any of them.
func (s *Schedule) InvalidateTx(hash [32]byte) []PeerNonce {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.orphanTxs.RemoveBranch(hash)
	return s.purgeInvs(InvTx, removed)
}

func (s *Schedule) purgeInvs(kind InvKind, hashes [][32]byte) []PeerNonce {
	peers := make(map[PeerNonce]struct{})
	for _, h := range hashes {
		inv := Inv{Kind: kind, Hash: h}
		st, ok := s.invs[inv]
		if !ok {
			continue
		}
		for p := range st.knownPeers {
			peers[p] = struct{}{}
			if pi, ok := s.peerInv[p]; ok {
				pi.setFor(kind).Erase(h)
				delete(pi.assignedFor(kind), h)
			}
		}
		delete(s.invs, inv)
		if kind == InvTx {
			delete(s.missingPrevTx, h)
		}
	}
	out := make([]PeerNonce, 0, len(peers))
	for p := range peers {
		out = append(out, p)
	}
	return out
}

func (s *Schedule) invExpired(st *invState, now int64) bool {
	if st.getDataCount >= MaxRegetData {
		return true
	}
	if st.getDataCount >= 1 && now-st.firstInvTime >= MaxInvWait {
		return true
	}
	if now-st.firstInvTime >= absoluteTimeout {
		return true
	}
	return false
}

// ScheduleBlockInv assigns up to max unassigned, non-expired block invs
// from nonce's ordered list.
func (s *Schedule) ScheduleBlockInv(nonce PeerNonce, max int) BlockInvResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ok := s.peerInv[nonce]
	if !ok {
		return BlockInvResult{Empty: true}
	}
	now := s.now()

	var out []Inv
	exhausted := true
	for _, h := range pi.blockInv.InOrder() {
		inv := Inv{Kind: InvBlock, Hash: h}
		st, ok := s.invs[inv]
		if !ok {
			pi.blockInv.Erase(h)
			continue
		}
		if st.hasAssigned {
			exhausted = false
			continue
		}
		if s.invExpired(st, now) {
			s.purgeInvs(InvBlock, [][32]byte{h})
			continue
		}
		exhausted = false
		if len(out) >= max {
			continue
		}
		st.hasAssigned = true
		st.assignedPeer = nonce
		st.getDataCount++
		pi.assignedBlock[h] = struct{}{}
		out = append(out, inv)
	}

	missingPrev := exhausted && now >= pi.nextGetBlocksDeadline
	return BlockInvResult{Items: out, MissingPrev: missingPrev, Empty: pi.blockInv.Len() == 0}
}

// ScheduleTxInv assigns up to max unassigned, non-expired tx invs from
// nonce's ordered list, giving priority to entries recorded in
// missing_prev_tx so orphan chains close first.
func (s *Schedule) ScheduleTxInv(nonce PeerNonce, max int) TxInvResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ok := s.peerInv[nonce]
	if !ok {
		return TxInvResult{ReceivedAll: true}
	}
	now := s.now()

	ordered := pi.txInv.InOrder()
	priority := make([]([32]byte), 0, len(ordered))
	rest := make([]([32]byte), 0, len(ordered))
	for _, h := range ordered {
		if _, ok := s.missingPrevTx[h]; ok {
			priority = append(priority, h)
		} else {
			rest = append(rest, h)
		}
	}
	candidates := append(priority, rest...)

	var out []Inv
	allAssignedOrGone := true
	for _, h := range candidates {
		inv := Inv{Kind: InvTx, Hash: h}
		st, ok := s.invs[inv]
		if !ok {
			pi.txInv.Erase(h)
			continue
		}
		if st.hasAssigned {
			continue
		}
		if s.invExpired(st, now) {
			s.purgeInvs(InvTx, [][32]byte{h})
			continue
		}
		allAssignedOrGone = false
		if len(out) >= max {
			continue
		}
		st.hasAssigned = true
		st.assignedPeer = nonce
		st.getDataCount++
		pi.assignedTx[h] = struct{}{}
		out = append(out, inv)
	}

	return TxInvResult{Items: out, ReceivedAll: allAssignedOrGone}
}

// CancelAssignedInv unassigns inv from nonce on timeout or GetFail; if
// nonce was the only knower, the entry is dropped entirely.
func (s *Schedule) CancelAssignedInv(nonce PeerNonce, inv Inv) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.invs[inv]
	if !ok {
		return
	}
	if st.hasAssigned && st.assignedPeer == nonce {
		st.hasAssigned = false
	}
	if pi, ok := s.peerInv[nonce]; ok {
		delete(pi.assignedFor(inv.Kind), inv.Hash)
	}
	if _, knows := st.knownPeers[nonce]; knows && len(st.knownPeers) == 1 {
		s.purgeInvs(inv.Kind, [][32]byte{inv.Hash})
	}
}

// LocatorDepthHash returns the locator hash recorded for nonce's next
// get-blocks roundtrip.
func (s *Schedule) LocatorDepthHash(nonce PeerNonce) ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.peerInv[nonce]
	if !ok {
		return [32]byte{}, false
	}
	return pi.locatorDepthHash, true
}

// SetLocatorDepthHash records the locator hash to use for nonce's next
// get-blocks roundtrip.
func (s *Schedule) SetLocatorDepthHash(nonce PeerNonce, hash [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.peerInv[nonce]; ok {
		pi.locatorDepthHash = hash
	}
}

// LocatorInvBlock returns the highest shared on-chain block discovered
// during get-blocks for nonce, plus its height.
func (s *Schedule) LocatorInvBlock(nonce PeerNonce) (height uint32, hash [32]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.peerInv[nonce]
	if !ok {
		return 0, [32]byte{}, false
	}
	return pi.locatorInvHeight, pi.locatorInvBlock, true
}

// SetLocatorInvBlock records the highest shared on-chain block discovered
// during get-blocks for nonce.
func (s *Schedule) SetLocatorInvBlock(nonce PeerNonce, height uint32, hash [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.peerInv[nonce]; ok {
		pi.locatorInvHeight = height
		pi.locatorInvBlock = hash
	}
}

// ClearLocatorInvBlock resets nonce's shared-block locator, used when a
// GETBLOCKS_EMPTY response arrives.
func (s *Schedule) ClearLocatorInvBlock(nonce PeerNonce) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.peerInv[nonce]; ok {
		pi.locatorInvHeight = 0
		pi.locatorInvBlock = [32]byte{}
	}
}

// NextGetBlocksDeadline returns nonce's rate-limit deadline for the next
// get-blocks request.
func (s *Schedule) NextGetBlocksDeadline(nonce PeerNonce) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.peerInv[nonce]; ok {
		return pi.nextGetBlocksDeadline
	}
	return 0
}

// SetNextGetBlocksDeadline records nonce's rate-limit deadline for the next
// get-blocks request.
func (s *Schedule) SetNextGetBlocksDeadline(nonce PeerNonce, deadline int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.peerInv[nonce]; ok {
		pi.nextGetBlocksDeadline = deadline
	}
}

// SetRepeatBlock marks hash as a duplicate mint at height for nonce.
// Reports true (misbehavior signal) once this peer has produced 4 or more
// distinct duplicates at that height.
func (s *Schedule) SetRepeatBlock(nonce PeerNonce, height uint32, hash [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.peerInv[nonce]
	if !ok {
		return false
	}
	return pi.recordRepeatMint(height, hash)
}

// AddCacheLocalPoWBlock inserts a locally produced primary PoW block into
// the height->block cache, evicting entries older than height-32, and
// reports whether this block was the first recorded at its height.
func (s *Schedule) AddCacheLocalPoWBlock(block Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.localPoWCache[block.Height]
	first := len(existing) == 0
	s.localPoWCache[block.Height] = append(existing, block.Hash)

	for h := range s.localPoWCache {
		if block.Height > localPoWCacheDepth && h < block.Height-localPoWCacheDepth {
			delete(s.localPoWCache, h)
		}
	}
	return first
}
