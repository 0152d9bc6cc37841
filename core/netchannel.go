package core

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/synledger/fullnode/pkg/wire"
)

// Wire-facing caps and pacing constants from §4.2.
const (
	MaxInvCountWire        = 8192
	MaxGetBlocksCount      = 128
	GetBlocksIntervalDef   = int64(120)
	GetBlocksIntervalEqual = int64(600)
	PushTxTimeout          = time.Second
	SynTxInvTimeout        = 60 * time.Second
)

// MisbehaviorReason names why a peer was flagged. The transport decides
// whether and how to act (disconnect, ban, blacklist); NetChannel only
// reports.
type MisbehaviorReason string

const (
	MisbehaviorDDOS       MisbehaviorReason = "DDOS_ATTACK"
	MisbehaviorRepeatMint MisbehaviorReason = "REPEAT_MINT"
	MisbehaviorProtocol   MisbehaviorReason = "PROTOCOL_ERROR"
)

// MisbehaviorFunc is invoked whenever NetChannel flags a peer. Left as a
// caller hook rather than built-in blacklisting, per the Open Question
// decision that the source only disconnects.
type MisbehaviorFunc func(nonce PeerNonce, reason MisbehaviorReason)

// NetChannel is the event-driven controller from §4.2: it owns the
// per-fork schedules, peer state, and unsynced-peer index, and translates
// every peer event into at most one schedule mutation, broadcast, or
// misbehavior report.
type NetChannel struct {
	role        NodeRole
	primaryFork ForkID

	chain      BlockChain
	protocol   CoreProtocol
	dispatcher Dispatcher
	misbehave  MisbehaviorFunc

	// schedulesMu guards the schedules map only. It is released before any
	// Schedule method is called; each Schedule serialises its own methods
	// with its own mutex, so no lock is ever re-acquired by its holder.
	schedulesMu sync.Mutex
	schedules   map[ForkID]*Schedule

	peersMu sync.RWMutex
	peers   map[PeerNonce]*PeerState

	unsyncedMu sync.RWMutex
	unsynced   map[ForkID]map[PeerNonce]struct{}

	txQueuesMu sync.Mutex
	txQueues   map[ForkID]*txBroadcastQueue

	out chan wire.OutgoingPeerEvent

	now func() int64
	log *log.Entry
}

// NewNetChannel constructs a NetChannel for a node with the given role and
// primary (genesis) fork.
func NewNetChannel(role NodeRole, primaryFork ForkID, chain BlockChain, protocol CoreProtocol, dispatcher Dispatcher, misbehave MisbehaviorFunc) *NetChannel {
	if misbehave == nil {
		misbehave = func(PeerNonce, MisbehaviorReason) {}
	}
	return &NetChannel{
		role:        role,
		primaryFork: primaryFork,
		chain:       chain,
		protocol:    protocol,
		dispatcher:  dispatcher,
		misbehave:   misbehave,
		schedules:   make(map[ForkID]*Schedule),
		peers:       make(map[PeerNonce]*PeerState),
		unsynced:    make(map[ForkID]map[PeerNonce]struct{}),
		txQueues:    make(map[ForkID]*txBroadcastQueue),
		out:         make(chan wire.OutgoingPeerEvent, 256),
		now:         func() int64 { return time.Now().Unix() },
		log:         log.WithField("component", "netchannel"),
	}
}

// Outbound returns the channel OutgoingPeerEvents are delivered on. A
// writer goroutine per peer (or a fan-out dispatcher keyed by event.Peer)
// drains it and frames each event onto the wire.
func (n *NetChannel) Outbound() <-chan wire.OutgoingPeerEvent { return n.out }

func (n *NetChannel) send(ev wire.OutgoingPeerEvent) {
	select {
	case n.out <- ev:
	default:
		n.log.Warn("netchannel: outbound queue full, dropping event")
	}
}

func (n *NetChannel) scheduleFor(fork ForkID) *Schedule {
	n.schedulesMu.Lock()
	defer n.schedulesMu.Unlock()
	s, ok := n.schedules[fork]
	if !ok {
		s = NewSchedule(fork)
		n.schedules[fork] = s
	}
	return s
}

func (n *NetChannel) existingScheduleFor(fork ForkID) (*Schedule, bool) {
	n.schedulesMu.Lock()
	defer n.schedulesMu.Unlock()
	s, ok := n.schedules[fork]
	return s, ok
}

func (n *NetChannel) markUnsynced(fork ForkID, nonce PeerNonce) {
	n.unsyncedMu.Lock()
	defer n.unsyncedMu.Unlock()
	set, ok := n.unsynced[fork]
	if !ok {
		set = make(map[PeerNonce]struct{})
		n.unsynced[fork] = set
	}
	set[nonce] = struct{}{}
}

func (n *NetChannel) clearUnsynced(fork ForkID, nonce PeerNonce) {
	n.unsyncedMu.Lock()
	defer n.unsyncedMu.Unlock()
	if set, ok := n.unsynced[fork]; ok {
		delete(set, nonce)
	}
}

// inScope applies the §4.2 role filter: BACKBONE serves everything, FORK
// ignores the primary fork, CONSENSUS ignores every non-primary fork.
// Out-of-scope messages are dropped silently (no misbehavior).
func (n *NetChannel) inScope(fork ForkID) bool {
	return n.role.InScope(fork, n.primaryFork)
}

// Dispatch routes one incoming peer event to its handler. At most one of
// {schedule mutation, broadcast, misbehavior report} results, per §4.2.
func (n *NetChannel) Dispatch(ev wire.IncomingPeerEvent) {
	switch ev.Kind {
	case wire.EvPeerActive:
		n.handlePeerActive(ev)
	case wire.EvPeerDeactive:
		n.handlePeerDeactive(ev)
	case wire.EvPeerSubscribe:
		n.handleSubscribe(ev, true)
	case wire.EvPeerUnsubscribe:
		n.handleSubscribe(ev, false)
	case wire.EvPeerInv:
		n.handleInv(ev)
	case wire.EvPeerGetData:
		n.handleGetData(ev)
	case wire.EvPeerGetBlocks:
		n.handleGetBlocks(ev)
	case wire.EvPeerTx:
		n.handleTx(ev)
	case wire.EvPeerBlock:
		n.handleBlock(ev)
	case wire.EvPeerGetFail:
		n.handleGetFail(ev)
	case wire.EvPeerMsgRsp:
		n.handleMsgRsp(ev)
	}
}
