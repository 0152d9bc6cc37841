package wire

import "testing"

func TestInvLessOrdersByKindThenHash(t *testing.T) {
	a := Inv{Kind: InvKindTx, Hash: [32]byte{1}}
	b := Inv{Kind: InvKindBlock, Hash: [32]byte{0}}
	if !a.Less(b) {
		t.Fatalf("a tx inv should sort before any block inv regardless of hash")
	}

	low := Inv{Kind: InvKindTx, Hash: [32]byte{1}}
	high := Inv{Kind: InvKindTx, Hash: [32]byte{2}}
	if !low.Less(high) || high.Less(low) {
		t.Fatalf("expected a strict ordering by hash within the same kind")
	}
}

func TestEncodeDecodeInvRoundTrip(t *testing.T) {
	inv := Inv{Kind: InvKindBlock, Hash: [32]byte{9, 8, 7}}
	buf := EncodeInv(nil, inv)

	got, rest, err := DecodeInv(buf)
	if err != nil {
		t.Fatalf("DecodeInv: %v", err)
	}
	if got != inv {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, inv)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no leftover bytes, got %d", len(rest))
	}
}

func TestInvPayloadRoundTrip(t *testing.T) {
	p := InvPayload{
		ForkID: [32]byte{1},
		Items: []Inv{
			{Kind: InvKindTx, Hash: [32]byte{1}},
			{Kind: InvKindBlock, Hash: [32]byte{2}},
		},
	}
	buf, err := EncodeInvPayload(p)
	if err != nil {
		t.Fatalf("EncodeInvPayload: %v", err)
	}
	got, err := DecodeInvPayload(buf)
	if err != nil {
		t.Fatalf("DecodeInvPayload: %v", err)
	}
	if got.ForkID != p.ForkID || len(got.Items) != len(p.Items) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
	for i := range p.Items {
		if got.Items[i] != p.Items[i] {
			t.Fatalf("item %d mismatch: got %+v want %+v", i, got.Items[i], p.Items[i])
		}
	}
}

func TestEncodeInvPayloadRejectsOverCap(t *testing.T) {
	items := make([]Inv, MaxInvVectorLen+1)
	if _, err := EncodeInvPayload(InvPayload{Items: items}); err == nil {
		t.Fatalf("expected an inv vector beyond MaxInvVectorLen to be rejected")
	}
}

func TestEncodeInvPayloadAcceptsExactlyAtCap(t *testing.T) {
	items := make([]Inv, MaxInvVectorLen)
	if _, err := EncodeInvPayload(InvPayload{Items: items}); err != nil {
		t.Fatalf("expected a vector of exactly MaxInvVectorLen to be accepted, got %v", err)
	}
}

func TestDecodeInvPayloadRejectsOverCapCount(t *testing.T) {
	var buf [36]byte
	buf[35] = 0
	// craft a count field claiming more items than MaxInvVectorLen allows.
	buf[32] = 0xFF
	buf[33] = 0xFF
	buf[34] = 0xFF
	buf[35] = 0xFF
	if _, err := DecodeInvPayload(buf[:]); err == nil {
		t.Fatalf("expected an oversize declared count to be rejected")
	}
}
