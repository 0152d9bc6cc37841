package core

import (
	"os"
	"testing"

	"github.com/synledger/fullnode/internal/testutil"
)

func TestSaveLoadTxPoolRoundTrip(t *testing.T) {
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sandbox.Cleanup()

	_, pool, genesis, mintHash := newSeededPool(t, 1000)
	spend := Transaction{
		Hash:        hashOf(101),
		AnchorBlock: [32]byte(genesis),
		Inputs:      []TxOutpoint{{TxID: mintHash, Index: 0}},
		Outputs:     []TxOut{{Dest: hashOf(201), Value: 900}},
		Size:        10,
	}
	if _, errno := pool.Push(spend, 1); errno != ErrOK {
		t.Fatalf("push: %v", errno)
	}

	path := sandbox.Path("txpool.dat")
	if err := SaveTxPool(pool, path); err != nil {
		t.Fatalf("SaveTxPool: %v", err)
	}

	loadChain, _, loadGenesis, loadMintHash := newSeededPool(t, 1000)
	loadPool := NewTxPool(loadChain, loadChain)
	loadChain.AttachTxPool(loadPool)
	if loadGenesis != genesis || loadMintHash != mintHash {
		t.Fatalf("expected the reconstructed chain fixture to match the original")
	}

	n, err := LoadTxPool(loadPool, path)
	if err != nil {
		t.Fatalf("LoadTxPool: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry loaded, got %d", n)
	}
	if !loadPool.Exists(spend.Hash) {
		t.Fatalf("expected the persisted tx to be re-pooled after load")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected txpool.dat to be deleted after a successful load")
	}
}

func TestLoadTxPoolMissingFileIsNotAnError(t *testing.T) {
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sandbox.Cleanup()

	_, pool, _, _ := newSeededPool(t, 1000)
	n, err := LoadTxPool(pool, sandbox.Path("does-not-exist.dat"))
	if err != nil {
		t.Fatalf("expected a missing file to be a no-op, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 entries loaded, got %d", n)
	}
}
