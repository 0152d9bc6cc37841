package core

import "testing"

func TestTxPoolViewInsertAndSpentTracking(t *testing.T) {
	v := NewTxPoolView()
	parent := Transaction{
		Hash:    hashOf(1),
		Outputs: []TxOut{{Dest: hashOf(10), Value: 100}},
	}
	v.Insert(parent, 50, 1)

	if !v.Exists(parent.Hash) {
		t.Fatalf("expected parent to be indexed by hash")
	}
	out, ok := v.UnspentOutput(TxOutpoint{TxID: parent.Hash, Index: 0})
	if !ok || out.Value != 100 {
		t.Fatalf("expected parent's own output to be unspent, got %+v ok=%v", out, ok)
	}

	child := Transaction{
		Hash:    hashOf(2),
		Inputs:  []TxOutpoint{{TxID: parent.Hash, Index: 0}},
		Outputs: []TxOut{{Dest: hashOf(11), Value: 90}},
	}
	v.Insert(child, 50, 1)

	if _, ok := v.UnspentOutput(TxOutpoint{TxID: parent.Hash, Index: 0}); ok {
		t.Fatalf("parent's output should no longer be unspent once child consumes it")
	}
	spender, ok := v.SpenderOf(TxOutpoint{TxID: parent.Hash, Index: 0})
	if !ok || spender != child.Hash {
		t.Fatalf("expected child to be recorded as the spender")
	}
}

func TestTxPoolViewOrderedBySequenceNumber(t *testing.T) {
	v := NewTxPoolView()
	parent := Transaction{Hash: hashOf(1), Outputs: []TxOut{{Dest: hashOf(10), Value: 100}}}
	v.Insert(parent, 10, 0)

	child := Transaction{
		Hash:   hashOf(2),
		Inputs: []TxOutpoint{{TxID: parent.Hash, Index: 0}},
	}
	v.Insert(child, 10, 0)

	order := v.ByOrder()
	if len(order) != 2 {
		t.Fatalf("expected 2 pooled tx, got %d", len(order))
	}
	if order[0].Tx.Hash != parent.Hash || order[1].Tx.Hash != child.Hash {
		t.Fatalf("expected parent before child in sequence order")
	}
}

func TestTxPoolViewInvalidateSpentCascades(t *testing.T) {
	v := NewTxPoolView()
	root := Transaction{Hash: hashOf(1), Outputs: []TxOut{{Dest: hashOf(10), Value: 100}}}
	v.Insert(root, 10, 0)
	child := Transaction{
		Hash:    hashOf(2),
		Inputs:  []TxOutpoint{{TxID: root.Hash, Index: 0}},
		Outputs: []TxOut{{Dest: hashOf(11), Value: 90}},
	}
	v.Insert(child, 10, 0)
	grandchild := Transaction{
		Hash:   hashOf(3),
		Inputs: []TxOutpoint{{TxID: child.Hash, Index: 0}},
	}
	v.Insert(grandchild, 10, 0)

	removed := v.InvalidateSpent(root.Hash)
	if len(removed) != 3 {
		t.Fatalf("expected root, child and grandchild all invalidated, got %d", len(removed))
	}
	if v.Len() != 0 {
		t.Fatalf("expected the view to be empty after cascading invalidation")
	}
}

func TestTxPoolViewRemoveIsNotRecursive(t *testing.T) {
	v := NewTxPoolView()
	root := Transaction{Hash: hashOf(1), Outputs: []TxOut{{Dest: hashOf(10), Value: 100}}}
	v.Insert(root, 10, 0)
	child := Transaction{
		Hash:   hashOf(2),
		Inputs: []TxOutpoint{{TxID: root.Hash, Index: 0}},
	}
	v.Insert(child, 10, 0)

	v.Remove(root.Hash)
	if !v.Exists(child.Hash) {
		t.Fatalf("Remove must not cascade to descendants, unlike InvalidateSpent")
	}
}
