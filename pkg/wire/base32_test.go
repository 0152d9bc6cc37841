package wire

import "testing"

func TestBase32Encode32DecodeRoundTrip(t *testing.T) {
	var payload [32]byte
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	s := Base32Encode32(payload)
	if len(s) != 56 {
		t.Fatalf("expected a 56-character encoding, got %d", len(s))
	}

	got, err := Base32Decode32(s)
	if err != nil {
		t.Fatalf("Base32Decode32: %v", err)
	}
	if got != payload {
		t.Fatalf("round trip mismatch: got %x want %x", got, payload)
	}
}

func TestBase32Decode32RejectsCorruption(t *testing.T) {
	var payload [32]byte
	payload[0] = 0x42
	s := Base32Encode32(payload)

	corrupted := []byte(s)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}

	if _, err := Base32Decode32(string(corrupted)); err == nil {
		t.Fatalf("expected a corrupted character to break the embedded checksum")
	}
}

func TestBase32Decode32RejectsWrongLength(t *testing.T) {
	if _, err := Base32Decode32("tooshort"); err == nil {
		t.Fatalf("expected a non-56-character string to be rejected")
	}
}
