package core

import "container/list"

// orderedHashSet is an insertion-ordered set of 32-byte hashes with O(1)
// membership test and O(1) erase by key, backed by a linked list walked in
// FIFO order during scheduling rounds. This stands in for the "ordered set
// with O(log n) contains/erase" described in spec: a doubly linked list
// plus an index map gives O(1) rather than O(log n), which only helps.
type orderedHashSet struct {
	order *list.List
	index map[[32]byte]*list.Element
}

func newOrderedHashSet() *orderedHashSet {
	return &orderedHashSet{order: list.New(), index: make(map[[32]byte]*list.Element)}
}

func (s *orderedHashSet) Contains(h [32]byte) bool {
	_, ok := s.index[h]
	return ok
}

// Insert appends h to the back if not already present. Returns false if it
// was already a member.
func (s *orderedHashSet) Insert(h [32]byte) bool {
	if s.Contains(h) {
		return false
	}
	e := s.order.PushBack(h)
	s.index[h] = e
	return true
}

func (s *orderedHashSet) Erase(h [32]byte) {
	e, ok := s.index[h]
	if !ok {
		return
	}
	s.order.Remove(e)
	delete(s.index, h)
}

func (s *orderedHashSet) Len() int { return len(s.index) }

// InOrder returns the members in insertion (FIFO) order.
func (s *orderedHashSet) InOrder() [][32]byte {
	out := make([][32]byte, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.([32]byte))
	}
	return out
}

// invState is the per-fork, per-object bookkeeping record described in
// §3 "Object state". known_peers == nil never happens while the entry
// exists: when it empties, the caller deletes the map entry entirely.
type invState struct {
	knownPeers   map[PeerNonce]struct{}
	assignedPeer PeerNonce
	hasAssigned  bool

	receivedBlock *Block
	receivedTx    *Transaction

	firstInvTime int64
	receivedTime int64
	clearTime    int64
	getDataCount int

	repeatMint bool
}

func newInvState(nonce PeerNonce, now int64) *invState {
	return &invState{
		knownPeers:   map[PeerNonce]struct{}{nonce: {}},
		firstInvTime: now,
	}
}

func (st *invState) addKnownPeer(nonce PeerNonce) {
	st.knownPeers[nonce] = struct{}{}
}

func (st *invState) removeKnownPeer(nonce PeerNonce) {
	delete(st.knownPeers, nonce)
	if st.hasAssigned && st.assignedPeer == nonce {
		st.hasAssigned = false
	}
}

func (st *invState) isEmpty() bool { return len(st.knownPeers) == 0 }

// PeerInv is the per-(peer, fork) state from §3 "Peer inventory".
type PeerInv struct {
	txInv    *orderedHashSet
	blockInv *orderedHashSet

	assignedTx    map[[32]byte]struct{}
	assignedBlock map[[32]byte]struct{}

	// blockRepeat maps height -> set of distinct block hashes received as
	// duplicate mints at that height. Misbehavior triggers at size >= 4.
	blockRepeat map[uint32]map[[32]byte]struct{}

	locatorInvHeight uint32
	locatorInvBlock  [32]byte
	locatorDepthHash [32]byte

	nextGetBlocksDeadline int64
}

func newPeerInv() *PeerInv {
	return &PeerInv{
		txInv:         newOrderedHashSet(),
		blockInv:      newOrderedHashSet(),
		assignedTx:    make(map[[32]byte]struct{}),
		assignedBlock: make(map[[32]byte]struct{}),
		blockRepeat:   make(map[uint32]map[[32]byte]struct{}),
	}
}

func (p *PeerInv) setFor(kind InvKind) *orderedHashSet {
	if kind == InvBlock {
		return p.blockInv
	}
	return p.txInv
}

func (p *PeerInv) assignedFor(kind InvKind) map[[32]byte]struct{} {
	if kind == InvBlock {
		return p.assignedBlock
	}
	return p.assignedTx
}

// recordRepeatMint records hash as a duplicate mint at height and reports
// whether this peer has now produced 4 or more distinct duplicates there.
func (p *PeerInv) recordRepeatMint(height uint32, hash [32]byte) bool {
	set, ok := p.blockRepeat[height]
	if !ok {
		set = make(map[[32]byte]struct{})
		p.blockRepeat[height] = set
	}
	set[hash] = struct{}{}
	return len(set) >= 4
}
