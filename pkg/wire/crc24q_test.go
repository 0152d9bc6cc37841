package wire

import "testing"

func TestCRC24QAppendedChecksumIsZero(t *testing.T) {
	data := []byte("the quick brown fox")
	crc := CRC24Q(data)
	framed := append(append([]byte{}, data...), byte(crc>>16), byte(crc>>8), byte(crc))

	if !CRC24QZero(framed) {
		t.Fatalf("data with its own CRC-24Q appended should checksum to zero")
	}
}

func TestCRC24QDetectsCorruption(t *testing.T) {
	data := []byte("the quick brown fox")
	crc := CRC24Q(data)
	framed := append(append([]byte{}, data...), byte(crc>>16), byte(crc>>8), byte(crc))
	framed[0] ^= 0x01

	if CRC24QZero(framed) {
		t.Fatalf("corrupting a single byte should break the checksum")
	}
}
