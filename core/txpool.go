package core

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// CTxFilter selects pooled transactions by destination for FilterTx.
type CTxFilter struct {
	Dests  map[[32]byte]struct{}
	// FoundTx is invoked for each matching tx in pool order. Returning
	// false aborts the walk early.
	FoundTx func(tx Transaction) bool
}

// ChainUpdate describes a chain-head transition passed to
// SynchronizeBlockchain: blocks newly added to the active chain and, on a
// rollback, blocks removed from it. Both slices are ordered oldest to
// newest; SynchronizeBlockchain walks each in reverse.
type ChainUpdate struct {
	Fork         ForkID
	BlockAddNew  []Block
	BlockRemove  []Block
}

// ChainChange reports the pool-side effects of a SynchronizeBlockchain
// call.
type ChainChange struct {
	// TxUpdate holds txs that were pending in the pool and are now
	// confirmed by a newly added block.
	TxUpdate map[[32]byte]Transaction
	// TxAddNew holds txs confirmed by a newly added block that were never
	// seen in the pool (e.g. submitted directly to a miner).
	TxAddNew []Transaction
	// TxRemove holds every tx evicted from the pool as a side effect; each
	// branch invalidated by a conflicting input is listed children-first
	// (reverse sequence-number order).
	TxRemove []Transaction
}

// TxPool owns one TxPoolView per fork, enforces validation via
// CoreProtocol, and reconciles pool state with chain updates.
type TxPool struct {
	mu sync.RWMutex

	chain    BlockChain
	protocol CoreProtocol

	views  map[ForkID]*TxPoolView
	caches map[ForkID]*TxCache
	seen   map[[32]byte]ForkID // txid -> fork, for O(1) exists/pop routing
}

// NewTxPool constructs an empty pool backed by the given collaborators.
func NewTxPool(chain BlockChain, protocol CoreProtocol) *TxPool {
	return &TxPool{
		chain:    chain,
		protocol: protocol,
		views:    make(map[ForkID]*TxPoolView),
		caches:   make(map[ForkID]*TxCache),
		seen:     make(map[[32]byte]ForkID),
	}
}

func (p *TxPool) viewFor(fork ForkID) *TxPoolView {
	v, ok := p.views[fork]
	if !ok {
		v = NewTxPoolView()
		p.views[fork] = v
	}
	return v
}

func (p *TxPool) cacheFor(fork ForkID) *TxCache {
	c, ok := p.caches[fork]
	if !ok {
		c = NewTxCache()
		p.caches[fork] = c
	}
	return c
}

// PushResult is returned by Push on success.
type PushResult struct {
	Fork    ForkID
	DestIn  [32]byte
	ValueIn uint64
}

// Push validates and inserts tx into the pool for its anchor fork.
func (p *TxPool) Push(tx Transaction, height uint32) (PushResult, Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushLocked(tx, height)
}

// pushLocked is the validating insert path shared by Push and the
// SynchronizeBlockchain rollback re-add; callers must already hold p.mu.
func (p *TxPool) pushLocked(tx Transaction, height uint32) (PushResult, Errno) {
	if _, ok := p.seen[tx.Hash]; ok {
		return PushResult{}, ErrAlreadyHave
	}
	if tx.IsMint {
		return PushResult{}, ErrTransactionInvalid
	}

	loc, ok := p.chain.GetBlockLocation(tx.AnchorBlock)
	if !ok {
		return PushResult{}, ErrTransactionInvalid
	}
	if _, _, _, _, ok := p.chain.GetLastBlock(loc.Fork); !ok {
		return PushResult{}, ErrTransactionInvalid
	}

	view := p.viewFor(loc.Fork)
	prevOutputs, err := p.resolvePrevOutputs(view, loc.Fork, tx)
	if err != ErrOK {
		return PushResult{}, err
	}

	if errno := p.protocol.VerifyTransaction(tx, prevOutputs, height, loc.Fork); errno != ErrOK {
		return PushResult{}, errno
	}

	for _, in := range tx.Inputs {
		if spender, ok := view.SpenderOf(in); ok && spender != tx.Hash {
			return PushResult{}, ErrTransactionConflictingInput
		}
	}

	var valueIn uint64
	for _, out := range prevOutputs {
		valueIn += out.Value
	}
	var valueOut uint64
	for _, out := range tx.Outputs {
		valueOut += out.Value
	}
	fee := uint64(0)
	if valueIn > valueOut {
		fee = valueIn - valueOut
	}

	view.Insert(tx, tx.Size, fee)
	p.seen[tx.Hash] = loc.Fork
	delete(p.caches, loc.Fork) // the view changed; stale templates no longer valid

	destIn := [32]byte{}
	if len(prevOutputs) > 0 {
		destIn = prevOutputs[0].Dest
	}
	return PushResult{Fork: loc.Fork, DestIn: destIn, ValueIn: valueIn}, ErrOK
}

func (p *TxPool) resolvePrevOutputs(view *TxPoolView, fork ForkID, tx Transaction) ([]TxOut, Errno) {
	outs := make([]TxOut, 0, len(tx.Inputs))
	var chainLookup []TxOutpoint
	for _, in := range tx.Inputs {
		if out, ok := view.UnspentOutput(in); ok {
			outs = append(outs, out)
			continue
		}
		chainLookup = append(chainLookup, in)
		outs = append(outs, TxOut{}) // placeholder, filled below
	}
	if len(chainLookup) > 0 {
		chainOuts, err := p.chain.GetTxUnspent(fork, chainLookup)
		if err != nil {
			log.WithError(err).Warn("txpool: chain lookup failed resolving prev outputs")
			return nil, ErrSysDatabaseError
		}
		if len(chainOuts) != len(chainLookup) {
			return nil, ErrMissingPrev
		}
		ci := 0
		for i, in := range tx.Inputs {
			if _, ok := view.UnspentOutput(in); ok {
				continue
			}
			outs[i] = chainOuts[ci]
			ci++
		}
	}
	return outs, ErrOK
}

// Pop removes txid from the pool, invalidating any spending descendants.
func (p *TxPool) Pop(txid [32]byte) []Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popLocked(txid)
}

func (p *TxPool) popLocked(txid [32]byte) []Transaction {
	fork, ok := p.seen[txid]
	if !ok {
		return nil
	}
	view := p.viewFor(fork)
	removedHashes := view.InvalidateSpent(txid)
	removed := make([]Transaction, 0, len(removedHashes))
	for _, h := range removedHashes {
		delete(p.seen, h)
	}
	// InvalidateSpent already removed the records; recover their bodies
	// is not possible post-removal, so callers needing bodies should snapshot
	// before popping. Reported here as hashes wrapped in empty Transactions
	// for API symmetry with higher-level callers that only need hashes.
	for _, h := range removedHashes {
		removed = append(removed, Transaction{Hash: h})
	}
	return removed
}

// Get returns the pooled transaction, if present.
func (p *TxPool) Get(txid [32]byte) (Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fork, ok := p.seen[txid]
	if !ok {
		return Transaction{}, false
	}
	pt, ok := p.views[fork].Get(txid)
	if !ok {
		return Transaction{}, false
	}
	return pt.Tx, true
}

// Exists reports whether txid is pooled.
func (p *TxPool) Exists(txid [32]byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.seen[txid]
	return ok
}

// ListTx returns pooled tx-ids for fork in pool sequence order.
func (p *TxPool) ListTx(fork ForkID) [][32]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	view, ok := p.views[fork]
	if !ok {
		return nil
	}
	order := view.ByOrder()
	out := make([][32]byte, len(order))
	for i, pt := range order {
		out[i] = pt.Tx.Hash
	}
	return out
}

// ListForkUnspent overlays pool state onto chainUnspents: outpoints spent
// in the pool are removed, then pool-only unspents owned by dest are
// appended until n is reached or the pool is exhausted.
func (p *TxPool) ListForkUnspent(fork ForkID, dest [32]byte, n int, chainUnspents []Unspent) []Unspent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, ok := p.views[fork]
	if !ok {
		return chainUnspents
	}

	out := make([]Unspent, 0, len(chainUnspents))
	for _, u := range chainUnspents {
		if _, spent := view.SpenderOf(u.Outpoint); spent {
			continue
		}
		out = append(out, u)
	}

	for _, pt := range view.ByOrder() {
		if len(out) >= n {
			break
		}
		for i, o := range pt.Tx.Outputs {
			if o.Dest != dest {
				continue
			}
			op := TxOutpoint{TxID: pt.Tx.Hash, Index: uint32(i)}
			if _, ok := view.UnspentOutput(op); ok {
				out = append(out, Unspent{Outpoint: op, Out: o})
			}
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FilterTx walks fork's pool in order, invoking filter.FoundTx for every
// tx whose SendTo or any input's owning destination matches filter.Dests.
// The walk stops early if FoundTx returns false.
func (p *TxPool) FilterTx(fork ForkID, filter CTxFilter) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, ok := p.views[fork]
	if !ok {
		return
	}
	for _, pt := range view.ByOrder() {
		_, matchSend := filter.Dests[pt.Tx.SendTo]
		matchIn := false
		for _, in := range pt.Tx.Inputs {
			var out TxOut
			if parent, ok := view.Get(in.TxID); ok && int(in.Index) < len(parent.Tx.Outputs) {
				out = parent.Tx.Outputs[in.Index]
			} else if outs, err := p.chain.GetTxUnspent(fork, []TxOutpoint{in}); err == nil && len(outs) == 1 {
				out = outs[0]
			} else {
				continue
			}
			if _, ok := filter.Dests[out.Dest]; ok {
				matchIn = true
				break
			}
		}
		if !matchSend && !matchIn {
			continue
		}
		if !filter.FoundTx(pt.Tx) {
			return
		}
	}
}

// ArrangeBlockTx returns a deterministic template of pool tx to include in
// a new block under the size budget, caching the result under prevHash.
func (p *TxPool) ArrangeBlockTx(fork ForkID, prevHash [32]byte, blockTime uint64, maxSize uint32) ([]Transaction, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tmpl := p.arrangeLocked(fork, prevHash, blockTime, maxSize)
	out := make([]Transaction, len(tmpl.Txs))
	for i, pt := range tmpl.Txs {
		out[i] = pt.Tx
	}
	return out, tmpl.Fee
}

func (p *TxPool) arrangeLocked(fork ForkID, prevHash [32]byte, blockTime uint64, maxSize uint32) BlockTemplate {
	cache := p.cacheFor(fork)
	if tmpl, ok := cache.Get(prevHash); ok {
		return tmpl
	}

	view, ok := p.views[fork]
	if !ok {
		tmpl := BlockTemplate{}
		cache.Put(prevHash, tmpl)
		return tmpl
	}

	unfit := make(map[[32]byte]struct{})
	var chosen []*PooledTx
	var fee uint64
	var size uint32

	for _, pt := range view.ByOrder() {
		if pt.Tx.Timestamp > blockTime {
			unfit[pt.Tx.Hash] = struct{}{}
			continue
		}
		parentUnfit := false
		for _, in := range pt.Tx.Inputs {
			if _, ok := unfit[in.TxID]; ok {
				parentUnfit = true
				break
			}
		}
		if parentUnfit {
			unfit[pt.Tx.Hash] = struct{}{}
			continue
		}
		if size+pt.Size > maxSize {
			break
		}
		chosen = append(chosen, pt)
		size += pt.Size
		fee += pt.Fee
	}

	tmpl := BlockTemplate{Txs: chosen, Fee: fee}
	cache.Put(prevHash, tmpl)
	return tmpl
}

// FetchInputs resolves tx's prev-outputs, pool taking priority over chain.
func (p *TxPool) FetchInputs(fork ForkID, tx Transaction) ([]TxOut, Errno) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	view := p.views[fork]
	if view == nil {
		view = NewTxPoolView()
	}
	outs, errno := p.resolvePrevOutputs(view, fork, tx)
	return outs, errno
}

// SynchronizeBlockchain reconciles pool state with a new chain head,
// following the forward/reverse walk described in §4.3.
func (p *TxPool) SynchronizeBlockchain(update ChainUpdate) ChainChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	change := ChainChange{TxUpdate: make(map[[32]byte]Transaction)}
	view := p.viewFor(update.Fork)

	for i := len(update.BlockAddNew) - 1; i >= 0; i-- {
		block := update.BlockAddNew[i]
		for _, tx := range block.Txs {
			if tx.IsMint {
				continue
			}
			if view.Exists(tx.Hash) {
				view.Remove(tx.Hash)
				delete(p.seen, tx.Hash)
				change.TxUpdate[tx.Hash] = tx
				continue
			}
			for _, in := range tx.Inputs {
				if spender, ok := view.SpenderOf(in); ok {
					removed := view.InvalidateSpent(spender)
					change.TxRemove = append(change.TxRemove, hashesToTx(removed)...)
					for _, h := range removed {
						delete(p.seen, h)
					}
				}
			}
			change.TxAddNew = append(change.TxAddNew, tx)
		}
	}

	for i := len(update.BlockRemove) - 1; i >= 0; i-- {
		block := update.BlockRemove[i]
		for _, tx := range block.Txs {
			if tx.IsMint {
				for j := range tx.Outputs {
					op := TxOutpoint{TxID: tx.Hash, Index: uint32(j)}
					if spender, ok := view.SpenderOf(op); ok {
						removed := view.InvalidateSpent(spender)
						change.TxRemove = append(change.TxRemove, hashesToTx(removed)...)
						for _, h := range removed {
							delete(p.seen, h)
						}
					}
				}
				continue
			}
			// Re-push through the same validating path a normal Push uses:
			// a tx that no longer verifies (now-invalid, or conflicting
			// with something accepted below it) must not be silently
			// re-pooled, per §4.3's "try to re-push... on failure, mark
			// for removal."
			if _, errno := p.pushLocked(tx, block.Height); errno != ErrOK {
				change.TxRemove = append(change.TxRemove, tx)
			}
		}
	}

	// InvalidateSpent already yields each branch's removals in descending
	// sequence-number order, children before the parents they spend from.
	cache := p.cacheFor(update.Fork)
	if len(update.BlockAddNew) > 0 {
		cache.Evict(update.BlockAddNew[len(update.BlockAddNew)-1].Prev)
	}
	return change
}

func hashesToTx(hashes [][32]byte) []Transaction {
	out := make([]Transaction, len(hashes))
	for i, h := range hashes {
		out[i] = Transaction{Hash: h}
	}
	return out
}
