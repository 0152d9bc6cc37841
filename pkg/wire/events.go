package wire

import "github.com/libp2p/go-libp2p/core/peer"

// IncomingPeerEventKind enumerates the shapes an IncomingPeerEvent can take.
// Go has no sum types, so NetChannel's event pump switches on Kind rather
// than on a class hierarchy the way a coroutine-based scheduler would.
type IncomingPeerEventKind uint8

const (
	EvPeerActive IncomingPeerEventKind = iota
	EvPeerDeactive
	EvPeerSubscribe
	EvPeerUnsubscribe
	EvPeerGetBlocks
	EvPeerGetData
	EvPeerInv
	EvPeerTx
	EvPeerBlock
	EvPeerGetFail
	EvPeerMsgRsp
)

// IncomingPeerEvent is one message arriving from a peer, already decoded
// off the wire. Exactly one of the payload fields is meaningful, selected
// by Kind.
type IncomingPeerEvent struct {
	Kind   IncomingPeerEventKind
	Peer   peer.ID
	ForkID [32]byte

	Roles     []uint8
	GetBlocks []Inv
	GetData   Inv
	Inv       InvPayload
	Tx        []byte
	Block     []byte
	MsgRsp    MsgRsp
}

// OutgoingPeerEventKind enumerates the shapes an OutgoingPeerEvent can take.
type OutgoingPeerEventKind uint8

const (
	EvSendSubscribe OutgoingPeerEventKind = iota
	EvSendUnsubscribe
	EvSendGetBlocks
	EvSendGetData
	EvSendInv
	EvSendTx
	EvSendBlock
	EvSendGetFail
	EvSendMsgRsp
)

// OutgoingPeerEvent is one message NetChannel wants delivered to a peer (or
// broadcast to all subscribed peers when Peer is the zero value).
type OutgoingPeerEvent struct {
	Kind   OutgoingPeerEventKind
	Peer   peer.ID
	ForkID [32]byte

	GetBlocks []Inv
	GetData   Inv
	Inv       InvPayload
	Tx        []byte
	Block     []byte
	MsgRsp    MsgRsp
}
