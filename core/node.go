package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	log "github.com/sirupsen/logrus"

	"github.com/synledger/fullnode/pkg/wire"
)

// NodeConfig configures the libp2p transport a Node wraps around NetChannel.
type NodeConfig struct {
	ListenAddr     string
	BootstrapPeers []string
	DiscoveryTag   string
}

// invTopic names the pubsub topic carrying Inv broadcasts for one fork; the
// DATA-channel commands that need a direct reply (GetData, GetBlocks,
// MsgRsp) still flow over a per-peer stream, but Inv fan-out maps cleanly
// onto gossipsub per the libp2p examples in the retrieval pack.
func invTopic(fork ForkID) string {
	return fmt.Sprintf("fullnode/inv/%x", fork)
}

// Node owns the libp2p host, gossipsub router and mDNS discovery that back
// one NetChannel. It translates discovered/connected peers into
// PeerActive/PeerDeactive events and relays NetChannel's outbound Inv
// broadcasts onto the corresponding gossipsub topic.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	ch     *NetChannel

	// sessionID is a diagnostic correlation id for this process's
	// transport session, generated once at startup since libp2p peer IDs
	// alone don't identify a single run across restarts.
	sessionID uuid.UUID

	topicsMu sync.Mutex
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription

	peersMu sync.RWMutex
	known   map[peer.ID]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	log *log.Entry
}

// NewNode constructs and starts the libp2p host backing ch: it opens a
// gossipsub router, starts mDNS discovery under cfg.DiscoveryTag, and dials
// cfg.BootstrapPeers. Discovered or dialed peers are fed into ch as
// PeerActive events.
func NewNode(cfg NodeConfig, ch *NetChannel) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("node: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("node: create pubsub: %w", err)
	}

	n := &Node{
		host:      h,
		pubsub:    ps,
		ch:        ch,
		sessionID: uuid.New(),
		topics:    make(map[string]*pubsub.Topic),
		subs:      make(map[string]*pubsub.Subscription),
		known:     make(map[peer.ID]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		log:       log.WithField("component", "node"),
	}

	mdns.NewMdnsService(h, cfg.DiscoveryTag, n)

	for _, addr := range cfg.BootstrapPeers {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			n.log.WithError(err).WithField("addr", addr).Warn("node: invalid bootstrap address")
			continue
		}
		n.dial(*info)
	}

	n.log.WithField("session", n.sessionID).Info("node: started")
	return n, nil
}

var _ mdns.Notifee = (*Node)(nil)

// HandlePeerFound implements mdns.Notifee: dials a newly discovered peer and
// feeds PeerActive into the NetChannel it was not already known to.
func (n *Node) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}
	n.peersMu.RLock()
	_, known := n.known[info.ID]
	n.peersMu.RUnlock()
	if known {
		return
	}
	n.dial(info)
}

func (n *Node) dial(info peer.AddrInfo) {
	if err := n.host.Connect(n.ctx, info); err != nil {
		n.log.WithError(err).WithField("peer", info.ID).Warn("node: connect failed")
		return
	}
	n.peersMu.Lock()
	n.known[info.ID] = struct{}{}
	n.peersMu.Unlock()
	n.ch.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerActive, Peer: info.ID})
	n.log.WithField("peer", info.ID).Info("node: peer connected")
}

// Disconnect tears down a peer's connection and feeds PeerDeactive into the
// NetChannel.
func (n *Node) Disconnect(id peer.ID) {
	n.peersMu.Lock()
	delete(n.known, id)
	n.peersMu.Unlock()
	_ = n.host.Network().ClosePeer(id)
	n.ch.Dispatch(wire.IncomingPeerEvent{Kind: wire.EvPeerDeactive, Peer: id})
}

// Peers lists currently known peer IDs.
func (n *Node) Peers() []peer.ID {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()
	out := make([]peer.ID, 0, len(n.known))
	for id := range n.known {
		out = append(out, id)
	}
	return out
}

// joinedTopic returns (creating if needed) the gossipsub Topic for name.
func (n *Node) joinedTopic(name string) (*pubsub.Topic, error) {
	n.topicsMu.Lock()
	defer n.topicsMu.Unlock()
	t, ok := n.topics[name]
	if ok {
		return t, nil
	}
	t, err := n.pubsub.Join(name)
	if err != nil {
		return nil, err
	}
	n.topics[name] = t
	return t, nil
}

// PublishInv gossips an encoded InvPayload on the topic for fork. Run calls
// this for every EvSendInv event it drains from NetChannel.Outbound(),
// whatever peer the event is addressed to.
func (n *Node) PublishInv(fork ForkID, payload []byte) error {
	t, err := n.joinedTopic(invTopic(fork))
	if err != nil {
		return fmt.Errorf("node: join inv topic: %w", err)
	}
	return t.Publish(n.ctx, payload)
}

// SubscribeInv starts relaying gossiped Inv payloads for fork to decode,
// typically wrapping the bytes back into an EvPeerInv dispatched to
// NetChannel. Call once per fork the node subscribes to.
func (n *Node) SubscribeInv(fork ForkID, decode func(from peer.ID, payload []byte)) error {
	name := invTopic(fork)
	t, err := n.joinedTopic(name)
	if err != nil {
		return err
	}
	n.topicsMu.Lock()
	sub, ok := n.subs[name]
	if !ok {
		sub, err = t.Subscribe()
		if err != nil {
			n.topicsMu.Unlock()
			return fmt.Errorf("node: subscribe inv topic: %w", err)
		}
		n.subs[name] = sub
	}
	n.topicsMu.Unlock()

	go func() {
		for {
			msg, err := sub.Next(n.ctx)
			if err != nil {
				n.log.WithError(err).Debug("node: inv subscription closed")
				return
			}
			if msg.ReceivedFrom == n.host.ID() {
				continue
			}
			decode(msg.ReceivedFrom, msg.Data)
		}
	}()
	return nil
}

// Run drains ch.Outbound(), relaying every EvSendInv event to the gossipsub
// topic for its fork — NetChannel already enumerates one event per
// subscribed peer (BroadcastBlockInv/BroadcastTxInv), so gossipsub's own
// peer-scoring and mesh delivery does the actual fan-out; publishing once
// per NetChannel event is redundant but not incorrect. Direct request/reply
// commands (GetData, GetBlocks, Tx, Block, MsgRsp, GetFail) are addressed to
// one peer.ID and need a per-peer stream writer, which is a transport-layer
// concern left to the caller per §1's scope boundary.
func (n *Node) Run() {
	for ev := range n.ch.Outbound() {
		if ev.Kind != wire.EvSendInv {
			continue
		}
		payload, err := wire.EncodeInvPayload(ev.Inv)
		if err != nil {
			n.log.WithError(err).Warn("node: encode outbound inv failed")
			continue
		}
		if err := n.PublishInv(ev.ForkID, payload); err != nil {
			n.log.WithError(err).Warn("node: publish inv failed")
		}
	}
}

// Close tears down the host and cancels the node's context.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}
