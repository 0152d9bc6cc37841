package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// HeaderSize is the fixed length-framed header: magic(4) + type(1) +
// payload_size(4) + payload_crc(4) + header_crc24(3).
const HeaderSize = 16

// MaxPayloadSize bounds a single framed message's payload.
const MaxPayloadSize = 4 * 1024 * 1024

// Header is the 16-byte frame preamble described in §6. Both CRCs must
// verify before the payload is trusted: payload_crc is a CRC-32 over the
// payload bytes, header_crc24 is a CRC-24Q over the first 13 header bytes.
type Header struct {
	Magic       uint32
	Type        MessageType
	PayloadSize uint32
	PayloadCRC  uint32
}

// Encode writes the 16-byte header, computing and appending header_crc24
// over the preceding 13 bytes.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[5:9], h.PayloadSize)
	binary.BigEndian.PutUint32(buf[9:13], h.PayloadCRC)
	crc := CRC24Q(buf[:13])
	buf[13] = byte(crc >> 16)
	buf[14] = byte(crc >> 8)
	buf[15] = byte(crc)
	return buf
}

// DecodeHeader parses a 16-byte buffer into a Header, verifying
// header_crc24. It does not verify payload_crc; call VerifyPayload once the
// payload has been read.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	if !CRC24QZero(buf) {
		return Header{}, fmt.Errorf("wire: header_crc24 mismatch")
	}
	h := Header{
		Magic:       binary.BigEndian.Uint32(buf[0:4]),
		Type:        MessageType(buf[4]),
		PayloadSize: binary.BigEndian.Uint32(buf[5:9]),
		PayloadCRC:  binary.BigEndian.Uint32(buf[9:13]),
	}
	if h.PayloadSize > MaxPayloadSize {
		return Header{}, fmt.Errorf("wire: payload_size %d exceeds %d", h.PayloadSize, MaxPayloadSize)
	}
	return h, nil
}

// VerifyPayload checks payload against the header's recorded CRC-32.
func (h Header) VerifyPayload(payload []byte) error {
	if uint32(len(payload)) != h.PayloadSize {
		return fmt.Errorf("wire: payload length %d does not match header %d", len(payload), h.PayloadSize)
	}
	if crc32.ChecksumIEEE(payload) != h.PayloadCRC {
		return fmt.Errorf("wire: payload_crc mismatch")
	}
	return nil
}

// Message is a single framed wire message: header plus payload.
type Message struct {
	Type    MessageType
	Payload []byte
}

// Encode serializes a message (magic supplied by the caller's session,
// typically the genesis-derived network magic number) into its on-wire
// byte form: header followed by payload.
func Encode(magic uint32, m Message) []byte {
	h := Header{
		Magic:       magic,
		Type:        m.Type,
		PayloadSize: uint32(len(m.Payload)),
		PayloadCRC:  crc32.ChecksumIEEE(m.Payload),
	}
	hdr := h.Encode()
	out := make([]byte, 0, HeaderSize+len(m.Payload))
	out = append(out, hdr[:]...)
	out = append(out, m.Payload...)
	return out
}

// ReadMessage reads one framed message from r, validating both CRCs and the
// expected magic number.
func ReadMessage(r io.Reader, wantMagic uint32) (Message, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Message{}, err
	}
	h, err := DecodeHeader(hdrBuf[:])
	if err != nil {
		return Message{}, err
	}
	if h.Magic != wantMagic {
		return Message{}, fmt.Errorf("wire: magic mismatch: got %08x want %08x", h.Magic, wantMagic)
	}
	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, err
	}
	if err := h.VerifyPayload(payload); err != nil {
		return Message{}, err
	}
	return Message{Type: h.Type, Payload: payload}, nil
}
