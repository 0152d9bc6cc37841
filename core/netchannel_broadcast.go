package core

import (
	"sync"
	"time"

	"github.com/synledger/fullnode/pkg/wire"
)

// txBroadcastQueue coalesces newly accepted tx hashes for one fork so a
// burst of pool inserts produces one INV round per PUSHTX_TIMEOUT instead
// of one per tx, per §4.2.
type txBroadcastQueue struct {
	mu      sync.Mutex
	pending [][32]byte
	timer   *time.Timer
}

// BroadcastBlockInv announces hash to every peer subscribed to fork that
// doesn't already know it, per the §4.2 "new block accepted" broadcast.
func (n *NetChannel) BroadcastBlockInv(fork ForkID, hash [32]byte) {
	item := wire.Inv{Kind: InvBlock, Hash: hash}

	var known map[PeerNonce]struct{}
	if sched, ok := n.existingScheduleFor(fork); ok {
		known = sched.KnownPeers(Inv{Kind: InvBlock, Hash: hash})
	}

	n.peersMu.RLock()
	defer n.peersMu.RUnlock()
	for nonce, p := range n.peers {
		fs, subscribed := p.Forks[fork]
		if !subscribed {
			continue
		}
		if _, alreadyKnown := known[nonce]; alreadyKnown {
			continue
		}
		n.send(wire.OutgoingPeerEvent{
			Kind:   wire.EvSendInv,
			Peer:   p.ID,
			ForkID: fork,
			Inv:    wire.InvPayload{ForkID: fork, Items: []wire.Inv{item}},
		})
		fs.SendTime = n.now()
	}
}

// BroadcastTxInv queues txid for announcement to every peer subscribed to
// fork, flushing immediately once PUSHTX_TIMEOUT has elapsed since the
// first queued hash or the batch reaches the wire inventory cap.
func (n *NetChannel) BroadcastTxInv(fork ForkID, txid [32]byte) {
	q := n.txQueueFor(fork)

	q.mu.Lock()
	q.pending = append(q.pending, txid)
	full := len(q.pending) >= MaxInvCountWire
	first := len(q.pending) == 1
	if first && !full {
		q.timer = time.AfterFunc(PushTxTimeout, func() { n.flushTxQueue(fork) })
	}
	q.mu.Unlock()

	if full {
		n.flushTxQueue(fork)
	}
}

func (n *NetChannel) txQueueFor(fork ForkID) *txBroadcastQueue {
	n.txQueuesMu.Lock()
	defer n.txQueuesMu.Unlock()
	q, ok := n.txQueues[fork]
	if !ok {
		q = &txBroadcastQueue{}
		n.txQueues[fork] = q
	}
	return q
}

func (n *NetChannel) flushTxQueue(fork ForkID) {
	q := n.txQueueFor(fork)

	q.mu.Lock()
	hashes := q.pending
	q.pending = nil
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	if len(hashes) == 0 {
		return
	}

	n.peersMu.RLock()
	defer n.peersMu.RUnlock()
	for _, p := range n.peers {
		fs, subscribed := p.Forks[fork]
		if !subscribed {
			continue
		}
		items := make([]wire.Inv, 0, len(hashes))
		for _, h := range hashes {
			if fs.KnowsTx(h) {
				continue
			}
			items = append(items, wire.Inv{Kind: InvTx, Hash: h})
			fs.RememberTx(h)
		}
		if len(items) == 0 {
			continue
		}
		n.send(wire.OutgoingPeerEvent{
			Kind:   wire.EvSendInv,
			Peer:   p.ID,
			ForkID: fork,
			Inv:    wire.InvPayload{ForkID: fork, Items: items},
		})
		fs.SendTime = n.now()
	}
}
