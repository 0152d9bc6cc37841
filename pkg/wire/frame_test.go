package wire

import (
	"bytes"
	"testing"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Magic: 0xDEADBEEF, Type: NewMessageType(DataChannel, CmdInv), PayloadSize: 128, PayloadCRC: 0xABCDEF01}
	buf := h.Encode()

	got, err := DecodeHeader(buf[:])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestDecodeHeaderRejectsCorruptCRC(t *testing.T) {
	h := Header{Magic: 1, Type: NewMessageType(DataChannel, CmdInv), PayloadSize: 0, PayloadCRC: 0}
	buf := h.Encode()
	buf[0] ^= 0xFF

	if _, err := DecodeHeader(buf[:]); err == nil {
		t.Fatalf("expected header_crc24 mismatch to be rejected")
	}
}

func TestDecodeHeaderRejectsOversizePayload(t *testing.T) {
	h := Header{Magic: 1, PayloadSize: MaxPayloadSize + 1}
	buf := h.Encode()
	if _, err := DecodeHeader(buf[:]); err == nil {
		t.Fatalf("expected a payload_size above MaxPayloadSize to be rejected")
	}
}

func TestEncodeReadMessageRoundTrip(t *testing.T) {
	const magic = 0x5A5A5A5A
	payload := []byte("hello inventory")
	msg := Message{Type: NewMessageType(DataChannel, CmdTx), Payload: payload}

	wire := Encode(magic, msg)
	got, err := ReadMessage(bytes.NewReader(wire), magic)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != msg.Type || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestReadMessageRejectsMagicMismatch(t *testing.T) {
	wire := Encode(1, Message{Type: NewMessageType(DataChannel, CmdTx), Payload: nil})
	if _, err := ReadMessage(bytes.NewReader(wire), 2); err == nil {
		t.Fatalf("expected a magic mismatch to be rejected")
	}
}

func TestVerifyPayloadRejectsCorruption(t *testing.T) {
	payload := []byte("payload")
	h := Header{PayloadSize: uint32(len(payload)), PayloadCRC: 0}
	if err := h.VerifyPayload(payload); err == nil {
		t.Fatalf("expected a wrong payload_crc to be rejected")
	}
}
