package core

import "testing"

// newSeededPool builds a MemChain with one genesis mint output and a TxPool
// wired to it, returning both plus the genesis fork/anchor hash and the
// mint transaction's hash for constructing spends in tests.
func newSeededPool(t *testing.T, mintValue uint64) (*MemChain, *TxPool, ForkID, [32]byte) {
	t.Helper()
	genesis := ForkID(hashOf(0))
	chain := NewMemChain(genesis)

	mint := Transaction{
		Hash:    hashOf(100),
		IsMint:  true,
		Outputs: []TxOut{{Dest: hashOf(200), Value: mintValue}},
	}
	chain.SeedGenesis(Block{Hash: [32]byte(genesis), Height: 0, Mint: MintPoW, Txs: []Transaction{mint}})

	pool := NewTxPool(chain, chain)
	chain.AttachTxPool(pool)
	return chain, pool, genesis, mint.Hash
}

func TestTxPoolPushValidatesAndInserts(t *testing.T) {
	_, pool, genesis, mintHash := newSeededPool(t, 1000)

	spend := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        100,
	}
	res, errno := pool.Push(spend, 1)
	if errno != ErrOK {
		t.Fatalf("expected ErrOK, got %v", errno)
	}
	if res.ValueIn != 1000 {
		t.Fatalf("expected resolved input value 1000, got %d", res.ValueIn)
	}
	if !pool.Exists(spend.Hash) {
		t.Fatalf("expected spend to be pooled")
	}

	if _, errno := pool.Push(spend, 1); errno != ErrAlreadyHave {
		t.Fatalf("re-pushing the same tx should report ErrAlreadyHave, got %v", errno)
	}
}

func TestTxPoolPushRejectsConflictingInput(t *testing.T) {
	_, pool, genesis, mintHash := newSeededPool(t, 1000)

	first := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        100,
	}
	if _, errno := pool.Push(first, 1); errno != ErrOK {
		t.Fatalf("expected first spend to succeed, got %v", errno)
	}

	second := Transaction{
		Hash:        hashOf(102),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(202), Value: 800}},
		Size:        100,
	}
	if _, errno := pool.Push(second, 1); errno != ErrTransactionConflictingInput {
		t.Fatalf("expected a double-spend of the same output to be rejected, got %v", errno)
	}
}

func TestTxPoolPushRejectsMint(t *testing.T) {
	_, pool, _, _ := newSeededPool(t, 1000)
	if _, errno := pool.Push(Transaction{Hash: hashOf(55), IsMint: true}, 1); errno != ErrTransactionInvalid {
		t.Fatalf("mint transactions must never be accepted into the pool, got %v", errno)
	}
}

func TestTxPoolArrangeBlockTxRespectsSizeBudget(t *testing.T) {
	_, pool, genesis, mintHash := newSeededPool(t, 1000)

	first := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 400}, {Dest: hashOf(202), Value: 500}},
		Size:        100,
	}
	if _, errno := pool.Push(first, 1); errno != ErrOK {
		t.Fatalf("push first: %v", errno)
	}
	second := Transaction{
		Hash:        hashOf(102),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: first.Hash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(203), Value: 300}},
		Size:        100,
	}
	if _, errno := pool.Push(second, 1); errno != ErrOK {
		t.Fatalf("push second: %v", errno)
	}

	txs, _ := pool.ArrangeBlockTx(genesis, [32]byte(genesis), 1<<62, 150)
	if len(txs) != 1 || txs[0].Hash != first.Hash {
		t.Fatalf("expected only the first tx to fit a 150-byte budget, got %d txs", len(txs))
	}

	full, _ := pool.ArrangeBlockTx(genesis, hashOf(250), 1<<62, 1000)
	if len(full) != 2 {
		t.Fatalf("expected both tx to fit a generous budget, got %d", len(full))
	}
}

func TestTxPoolArrangeBlockTxExcludesFutureTimestamp(t *testing.T) {
	_, pool, genesis, mintHash := newSeededPool(t, 1000)

	future := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Timestamp:   1000,
		Size:        100,
	}
	if _, errno := pool.Push(future, 1); errno != ErrOK {
		t.Fatalf("push: %v", errno)
	}

	txs, _ := pool.ArrangeBlockTx(genesis, hashOf(99), 500, 10000)
	if len(txs) != 0 {
		t.Fatalf("a tx timestamped after blockTime must be excluded from the template")
	}
}

func TestTxPoolSynchronizeBlockchainConfirmsPooledTx(t *testing.T) {
	chain, pool, genesis, mintHash := newSeededPool(t, 1000)

	spend := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        100,
	}
	if _, errno := pool.Push(spend, 1); errno != ErrOK {
		t.Fatalf("push: %v", errno)
	}

	confirmBlock := Block{Hash: hashOf(1), Prev: [32]byte(genesis), Height: 1, Txs: []Transaction{spend}}
	if errno := chain.AddNewBlock(confirmBlock, 0); errno != ErrOK {
		t.Fatalf("AddNewBlock: %v", errno)
	}

	if pool.Exists(spend.Hash) {
		t.Fatalf("a confirmed tx should be removed from the pool")
	}
}

func TestTxPoolListForkUnspentOverlaysPool(t *testing.T) {
	_, pool, genesis, mintHash := newSeededPool(t, 1000)

	spend := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        100,
	}
	if _, errno := pool.Push(spend, 1); errno != ErrOK {
		t.Fatalf("push: %v", errno)
	}

	chainUnspent := []Unspent{{Outpoint: TxOutpoint{TxID: mintHash, Index: 0}, Out: TxOut{Dest: hashOf(200), Value: 1000}}}
	out := pool.ListForkUnspent(genesis, hashOf(201), 10, chainUnspent)

	for _, u := range out {
		if u.Outpoint == (TxOutpoint{TxID: mintHash, Index: 0}) {
			t.Fatalf("the chain-unspent output pool-spent by spend should have been filtered out")
		}
	}
	found := false
	for _, u := range out {
		if u.Outpoint.TxID == spend.Hash {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected spend's own unspent output owned by the filter dest to be surfaced")
	}
}
