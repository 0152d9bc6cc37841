package core

import "sync"

// MemChain is an in-memory reference implementation of BlockChain,
// CoreProtocol and Dispatcher, grounded the same way the teacher repo backs
// its BlockReader/StateRW interfaces with an in-process Ledger rather than a
// real datastore. It exists for package tests and for fullnoded's -dev
// standalone mode; it is not a production block store.
type MemChain struct {
	mu sync.RWMutex

	genesis ForkID

	blocks   map[[32]byte]Block
	location map[[32]byte]BlockLocation
	heads    map[ForkID][32]byte // fork -> current head hash
	heights  map[ForkID]uint32

	txs    map[[32]byte]Transaction
	unspent map[TxOutpoint]TxOut

	schedule *Schedule // not read by any MemChain method
	txPool   *TxPool
}

// NewMemChain constructs an empty chain rooted at genesis.
func NewMemChain(genesis ForkID) *MemChain {
	return &MemChain{
		genesis:  genesis,
		blocks:   make(map[[32]byte]Block),
		location: make(map[[32]byte]BlockLocation),
		heads:    make(map[ForkID][32]byte),
		heights:  make(map[ForkID]uint32),
		txs:      make(map[[32]byte]Transaction),
		unspent:  make(map[TxOutpoint]TxOut),
	}
}

// AttachTxPool lets MemChain's Dispatcher implementation push accepted
// transactions straight into the pool it fronts, the way a real node wires
// NetChannel's Dispatcher to the same TxPool it queries.
func (m *MemChain) AttachTxPool(p *TxPool) { m.txPool = p }

// SeedGenesis installs block as height 0 of its own fork with no
// predecessor required, used to bootstrap tests.
func (m *MemChain) SeedGenesis(block Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(m.genesis, block)
}

func (m *MemChain) insertLocked(fork ForkID, block Block) {
	m.blocks[block.Hash] = block
	m.location[block.Hash] = BlockLocation{Fork: fork, Height: block.Height}
	if prevLoc, ok := m.location[block.Prev]; ok {
		prevLoc.NextHash = block.Hash
		prevLoc.HasNext = true
		m.location[block.Prev] = prevLoc
	}
	m.heads[fork] = block.Hash
	m.heights[fork] = block.Height
	for _, tx := range block.Txs {
		if tx.IsMint {
			for i, out := range tx.Outputs {
				m.unspent[TxOutpoint{TxID: tx.Hash, Index: uint32(i)}] = out
			}
			continue
		}
		for _, in := range tx.Inputs {
			delete(m.unspent, in)
		}
		for i, out := range tx.Outputs {
			m.unspent[TxOutpoint{TxID: tx.Hash, Index: uint32(i)}] = out
		}
		m.txs[tx.Hash] = tx
	}
}

// Exists reports whether hash names any known block.
func (m *MemChain) Exists(hash [32]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[hash]
	return ok
}

// GetLastBlock returns fork's current head.
func (m *MemChain) GetLastBlock(fork ForkID) (hash [32]byte, height uint32, time uint64, mint MintType, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.heads[fork]
	if !ok {
		return [32]byte{}, 0, 0, MintPoW, false
	}
	b := m.blocks[h]
	return h, b.Height, b.Time, b.Mint, true
}

// GetBlockLocation resolves hash's fork/height, if known.
func (m *MemChain) GetBlockLocation(hash [32]byte) (BlockLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.location[hash]
	return loc, ok
}

// GetBlockLocator returns a locator seeded at the current head, walking
// backward one block at a time up to max entries. depth is reserved for a
// sparser exponential-backoff locator a real chain would produce.
func (m *MemChain) GetBlockLocator(fork ForkID, depth uint32, max int) [][32]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.heads[fork]
	if !ok {
		return [][32]byte{m.genesis}
	}
	out := make([][32]byte, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, h)
		b, ok := m.blocks[h]
		if !ok || b.Prev == ([32]byte{}) {
			break
		}
		h = b.Prev
	}
	return out
}

// GetBlockInv resolves locator into up to max successive descendant hashes
// from the first locator entry MemChain recognizes.
func (m *MemChain) GetBlockInv(fork ForkID, locator [][32]byte, max int) [][32]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var start [32]byte
	found := false
	for _, h := range locator {
		if loc, ok := m.location[h]; ok && loc.Fork == fork {
			start = h
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	out := make([][32]byte, 0, max)
	cur := start
	for len(out) < max {
		loc, ok := m.location[cur]
		if !ok || !loc.HasNext {
			break
		}
		out = append(out, loc.NextHash)
		cur = loc.NextHash
	}
	return out
}

// GetTxUnspent resolves each input to its chain-confirmed unspent output.
// Inputs without one are skipped, so the result can be shorter than
// inputs; the error is always nil.
func (m *MemChain) GetTxUnspent(fork ForkID, inputs []TxOutpoint) ([]TxOut, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TxOut, 0, len(inputs))
	for _, in := range inputs {
		o, ok := m.unspent[in]
		if !ok {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// ExistsTx reports whether txid is confirmed on chain.
func (m *MemChain) ExistsTx(txid [32]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[txid]
	return ok
}

// GetTransaction returns a confirmed transaction body.
func (m *MemChain) GetTransaction(txid [32]byte) (Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[txid]
	return tx, ok
}

// VerifyRepeatBlock reports whether block has the height of fork's current
// head but a different hash. Heights below the head are not checked.
func (m *MemChain) VerifyRepeatBlock(fork ForkID, block Block) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	head, ok := m.heads[fork]
	if !ok {
		return false
	}
	h := m.blocks[head]
	return h.Height == block.Height && head != block.Hash
}

// GenesisBlockHash returns the configured genesis fork id, reused directly
// as the genesis block hash for this reference chain.
func (m *MemChain) GenesisBlockHash() [32]byte { return m.genesis }

// ValidateTransaction performs the structural checks CoreProtocol owns
// ahead of full VerifyTransaction: here, only mint-transaction rejection,
// since everything else needs prev-outputs.
func (m *MemChain) ValidateTransaction(tx Transaction, height uint32) Errno {
	if tx.IsMint {
		return ErrTransactionInvalid
	}
	return ErrOK
}

// VerifyTransaction checks that every input is covered by a prevOutput and
// that declared outputs don't exceed declared inputs; a real consensus
// engine additionally checks scripts/signatures, which MemChain has no
// model for.
func (m *MemChain) VerifyTransaction(tx Transaction, prevOutputs []TxOut, height uint32, fork ForkID) Errno {
	if len(prevOutputs) != len(tx.Inputs) {
		return ErrMissingPrev
	}
	var valueIn, valueOut uint64
	for _, o := range prevOutputs {
		valueIn += o.Value
	}
	for _, o := range tx.Outputs {
		valueOut += o.Value
	}
	if valueOut > valueIn {
		return ErrTransactionInvalid
	}
	return ErrOK
}

// AddNewBlock appends block to its parent's fork if known, or reports
// MissingPrev/AlreadyHave as BlockChain.Exists and GetBlockLocation dictate.
func (m *MemChain) AddNewBlock(block Block, source PeerNonce) Errno {
	m.mu.Lock()
	if _, ok := m.blocks[block.Hash]; ok {
		m.mu.Unlock()
		return ErrAlreadyHave
	}
	var fork ForkID
	if block.Prev == ([32]byte{}) {
		fork = m.genesis
	} else {
		loc, ok := m.location[block.Prev]
		if !ok {
			m.mu.Unlock()
			return ErrMissingPrev
		}
		fork = loc.Fork
	}
	m.insertLocked(fork, block)
	m.mu.Unlock()

	if m.txPool != nil {
		m.txPool.SynchronizeBlockchain(ChainUpdate{Fork: fork, BlockAddNew: []Block{block}})
	}
	return ErrOK
}

// AddNewTx validates tx through Push and reports the resulting Errno,
// mirroring Dispatcher::add_new_tx's idempotent-ALREADY_HAVE contract.
func (m *MemChain) AddNewTx(tx Transaction, source PeerNonce) Errno {
	if m.txPool == nil {
		return ErrSysStorageError
	}
	_, errno := m.txPool.Push(tx, m.currentHeight(tx.AnchorBlock))
	return errno
}

func (m *MemChain) currentHeight(anchor [32]byte) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.location[anchor]
	if !ok {
		return 0
	}
	return loc.Height
}

var (
	_ BlockChain   = (*MemChain)(nil)
	_ CoreProtocol = (*MemChain)(nil)
	_ Dispatcher   = (*MemChain)(nil)
)
