package core

import "testing"

func hashOf(b byte) [32]byte {
	var h [32]byte
	h[31] = b
	return h
}

func TestScheduleAddNewInvGlobalCap(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	for i := 0; i < MaxInvCount; i++ {
		var h [32]byte
		h[0] = byte(i >> 16)
		h[1] = byte(i >> 8)
		h[2] = byte(i)
		if ok := s.AddNewInv(Inv{Kind: InvTx, Hash: h}, nonce); !ok {
			t.Fatalf("inv %d: expected accept under cap %d", i, MaxInvCount)
		}
	}

	var overflow [32]byte
	overflow[3] = 1
	if ok := s.AddNewInv(Inv{Kind: InvTx, Hash: overflow}, nonce); ok {
		t.Fatalf("expected rejection once the global inv cap of %d is reached", MaxInvCount)
	}
}

func TestScheduleAddNewInvPerPeerBlockCap(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(7)
	s.AddPeer(nonce)

	for i := 0; i < MaxPeerBlockInv; i++ {
		var h [32]byte
		h[0] = byte(i >> 8)
		h[1] = byte(i)
		if ok := s.AddNewInv(Inv{Kind: InvBlock, Hash: h}, nonce); !ok {
			t.Fatalf("block inv %d: expected accept under per-peer cap %d", i, MaxPeerBlockInv)
		}
	}

	var overflow [32]byte
	overflow[2] = 1
	if ok := s.AddNewInv(Inv{Kind: InvBlock, Hash: overflow}, nonce); ok {
		t.Fatalf("expected rejection once this peer's block inv cap of %d is reached", MaxPeerBlockInv)
	}

	// a duplicate of an already-known inv never counts against the cap.
	if ok := s.AddNewInv(Inv{Kind: InvBlock, Hash: hashOf(0)}, nonce); !ok {
		t.Fatalf("re-advertising a known inv should not be rejected by the cap")
	}
}

func TestScheduleReceiveBlockRequiresAssignment(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	h := hashOf(1)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: h}, nonce)

	block := Block{Hash: h, Height: 1}
	if ok := s.ReceiveBlock(nonce, h, block); ok {
		t.Fatalf("receiving a block with no outstanding assignment should fail")
	}

	res := s.ScheduleBlockInv(nonce, 10)
	if len(res.Items) != 1 {
		t.Fatalf("expected one assigned block inv, got %d", len(res.Items))
	}

	if ok := s.ReceiveBlock(nonce, h, block); !ok {
		t.Fatalf("receiving the now-assigned block should succeed")
	}
	got, who, ok := s.GetBlock(h)
	if !ok || who != nonce || got.Hash != h {
		t.Fatalf("GetBlock did not return the received body")
	}

	// a second delivery of the same inv is rejected: it was already received.
	if ok := s.ReceiveBlock(nonce, h, block); ok {
		t.Fatalf("re-delivering an already-received block should fail")
	}
}

func TestScheduleRemovePeerReschedulesOthers(t *testing.T) {
	s := NewSchedule(ForkID{})
	const a, b = PeerNonce(1), PeerNonce(2)
	s.AddPeer(a)
	s.AddPeer(b)

	h := hashOf(9)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: h}, a)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: h}, b)

	res := s.ScheduleBlockInv(a, 10)
	if len(res.Items) != 1 {
		t.Fatalf("expected a to be assigned the inv")
	}

	reschedule := s.RemovePeer(a)
	found := false
	for _, p := range reschedule {
		if p == b {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected b to be reported for reassignment after a's assignment was revoked")
	}

	res = s.ScheduleBlockInv(b, 10)
	if len(res.Items) != 1 {
		t.Fatalf("expected b to pick up the now-unassigned inv, got %d items", len(res.Items))
	}
}

func TestScheduleSetRepeatBlockMisbehaviorAtFour(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	const height = 100
	for i := byte(1); i <= 3; i++ {
		if flagged := s.SetRepeatBlock(nonce, height, hashOf(i)); flagged {
			t.Fatalf("duplicate #%d should not flag misbehavior yet", i)
		}
	}
	if flagged := s.SetRepeatBlock(nonce, height, hashOf(4)); !flagged {
		t.Fatalf("the 4th distinct duplicate mint at one height should flag misbehavior")
	}
}

func TestScheduleAddCacheLocalPoWBlockEvicts(t *testing.T) {
	s := NewSchedule(ForkID{})

	first := s.AddCacheLocalPoWBlock(Block{Hash: hashOf(1), Height: 1})
	if !first {
		t.Fatalf("first block recorded at a height should report true")
	}
	again := s.AddCacheLocalPoWBlock(Block{Hash: hashOf(2), Height: 1})
	if again {
		t.Fatalf("second block at the same height should report false")
	}

	s.AddCacheLocalPoWBlock(Block{Hash: hashOf(3), Height: 1 + localPoWCacheDepth + 5})
	if _, ok := s.localPoWCache[1]; ok {
		t.Fatalf("height 1 should have been evicted once far enough behind the new height")
	}
}

func TestScheduleInvalidateBlockCascadesOrphans(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	root, child, grandchild := hashOf(1), hashOf(2), hashOf(3)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: root}, nonce)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: child}, nonce)
	s.AddNewInv(Inv{Kind: InvBlock, Hash: grandchild}, nonce)
	s.AddOrphanBlockPrev(child, root)
	s.AddOrphanBlockPrev(grandchild, child)

	peers := s.InvalidateBlock(root)
	if len(peers) != 1 || peers[0] != nonce {
		t.Fatalf("expected nonce to be reported as having supplied the invalidated branch")
	}
	if _, ok := s.invs[Inv{Kind: InvBlock, Hash: child}]; ok {
		t.Fatalf("child should have been purged along with its ancestor")
	}
	if _, ok := s.invs[Inv{Kind: InvBlock, Hash: grandchild}]; ok {
		t.Fatalf("grandchild should have been purged transitively")
	}
}

func TestScheduleCancelAssignedInvDropsWhenUnknown(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	h := hashOf(5)
	s.AddNewInv(Inv{Kind: InvTx, Hash: h}, nonce)
	s.ScheduleTxInv(nonce, 10)

	s.CancelAssignedInv(nonce, Inv{Kind: InvTx, Hash: h})
	if _, ok := s.invs[Inv{Kind: InvTx, Hash: h}]; ok {
		t.Fatalf("cancelling the only knower's assignment should drop the inv entirely")
	}
}

func TestScheduleTxInvPrioritizesMissingPrev(t *testing.T) {
	s := NewSchedule(ForkID{})
	const nonce = PeerNonce(1)
	s.AddPeer(nonce)

	plain, blocked := hashOf(1), hashOf(2)
	s.AddNewInv(Inv{Kind: InvTx, Hash: plain}, nonce)
	s.AddNewInv(Inv{Kind: InvTx, Hash: blocked}, nonce)
	s.CheckPrevTxInv(Inv{Kind: InvTx, Hash: blocked})

	res := s.ScheduleTxInv(nonce, 1)
	if len(res.Items) != 1 || res.Items[0].Hash != blocked {
		t.Fatalf("expected the missing-prev entry to be scheduled first, got %+v", res.Items)
	}
}
