package wire

import (
	"encoding/binary"
	"fmt"
)

// MsgRspResult is the outcome code carried by a MSGRSP reply, correlating
// it back to the request that prompted it.
type MsgRspResult uint32

const (
	GetBlocksOK    MsgRspResult = 0
	GetBlocksEmpty MsgRspResult = 1
	GetBlocksEqual MsgRspResult = 2
	TxInvReceived  MsgRspResult = 3
	TxInvComplete  MsgRspResult = 4
)

func (r MsgRspResult) String() string {
	switch r {
	case GetBlocksOK:
		return "GETBLOCKS_OK"
	case GetBlocksEmpty:
		return "GETBLOCKS_EMPTY"
	case GetBlocksEqual:
		return "GETBLOCKS_EQUAL"
	case TxInvReceived:
		return "TXINV_RECEIVED"
	case TxInvComplete:
		return "TXINV_COMPLETE"
	default:
		return fmt.Sprintf("MsgRspResult(%d)", uint32(r))
	}
}

// MsgRsp correlates an asynchronous reply with the message that triggered
// it, so a requester waiting on a GETBLOCKS or TX INV exchange can match
// the response without holding a dedicated request ID table.
type MsgRsp struct {
	ReqMsgType    MessageType
	ReqMsgSubType uint8
	Result        MsgRspResult
}

const msgRspWireSize = 1 + 1 + 4

// EncodeMsgRsp serializes a MsgRsp payload.
func EncodeMsgRsp(m MsgRsp) []byte {
	buf := make([]byte, msgRspWireSize)
	buf[0] = byte(m.ReqMsgType)
	buf[1] = m.ReqMsgSubType
	binary.BigEndian.PutUint32(buf[2:6], uint32(m.Result))
	return buf
}

// DecodeMsgRsp parses a MSGRSP message body.
func DecodeMsgRsp(buf []byte) (MsgRsp, error) {
	if len(buf) != msgRspWireSize {
		return MsgRsp{}, fmt.Errorf("wire: msgrsp must be %d bytes, got %d", msgRspWireSize, len(buf))
	}
	return MsgRsp{
		ReqMsgType:    MessageType(buf[0]),
		ReqMsgSubType: buf[1],
		Result:        MsgRspResult(binary.BigEndian.Uint32(buf[2:6])),
	}, nil
}
