package core

import "sort"

// spentState records, per outpoint, whether it has been consumed by a
// pooled tx (SpentBy) or is still sitting unspent as a pooled tx's own
// output (Out). An outpoint transitions from unspent to spent as soon as
// some other pooled tx consumes it; it is removed entirely when the
// owning tx itself leaves the pool.
type spentState struct {
	spentBy [32]byte
	isSpent bool
	out     TxOut
	hasOut  bool
}

// TxPoolView is the per-fork pooled-tx set described in §3: a hash-unique
// index and a sequence-number order (pool age / dependency order), plus
// the spent map that pins down every input/output relationship among
// pooled tx. The hash index is the map of record, and the sequence-number
// order is a sorted slice maintained incrementally. There is no index by
// tx kind and no score index.
type TxPoolView struct {
	byHash   map[[32]byte]*PooledTx
	byOrder  []*PooledTx // kept sorted ascending by SequenceNumber
	spent    map[TxOutpoint]*spentState
	counter  poolCounter
}

// NewTxPoolView constructs an empty per-fork view.
func NewTxPoolView() *TxPoolView {
	return &TxPoolView{
		byHash: make(map[[32]byte]*PooledTx),
		spent:  make(map[TxOutpoint]*spentState),
	}
}

// score gives pooled tx a derived fee-rate ordering key. Larger is
// higher priority for block-template inclusion ties; arrange_block_tx
// itself walks by sequence number, per spec, so score is advisory only.
func score(p *PooledTx) uint64 {
	if p.Size == 0 {
		return 0
	}
	return p.Fee / uint64(p.Size)
}

func (v *TxPoolView) insertSorted(p *PooledTx) {
	i := sort.Search(len(v.byOrder), func(i int) bool {
		return v.byOrder[i].SequenceNumber >= p.SequenceNumber
	})
	v.byOrder = append(v.byOrder, nil)
	copy(v.byOrder[i+1:], v.byOrder[i:])
	v.byOrder[i] = p
}

func (v *TxPoolView) removeSorted(p *PooledTx) {
	for i, e := range v.byOrder {
		if e == p {
			v.byOrder = append(v.byOrder[:i], v.byOrder[i+1:]...)
			return
		}
	}
}

// nextSlotFor computes the dependency slot for a new tx that spends
// outputs from already-pooled parents: parent.slot - 1 for the
// highest-priority parent found, or 0 when no pooled parent exists.
func (v *TxPoolView) nextSlotFor(tx Transaction) uint64 {
	var slot uint64
	found := false
	for _, in := range tx.Inputs {
		parent, ok := v.byHash[in.TxID]
		if !ok {
			continue
		}
		candidate := parent.NextSequenceNumber
		if candidate == 0 && slotOf(parent.SequenceNumber) > 0 {
			candidate = slotOf(parent.SequenceNumber) - 1
		}
		if !found || candidate < slot {
			slot = candidate
			found = true
		}
	}
	return slot
}

// Insert adds tx to the view, assigning its sequence number and wiring the
// spent map: every input is marked consumed by tx, and every output
// becomes an unspent entry pending a future spender.
func (v *TxPoolView) Insert(tx Transaction, size uint32, fee uint64) *PooledTx {
	if len(v.byHash) == 0 {
		v.counter.reset()
	}
	slot := v.nextSlotFor(tx)
	seq := newSequenceNumber(v.counter.advance(), slot)

	p := &PooledTx{Tx: tx, SequenceNumber: seq, Size: size, Fee: fee}
	v.byHash[tx.Hash] = p
	v.insertSorted(p)

	for _, in := range tx.Inputs {
		v.spent[in] = &spentState{spentBy: tx.Hash, isSpent: true}
	}
	for i, out := range tx.Outputs {
		op := TxOutpoint{TxID: tx.Hash, Index: uint32(i)}
		if _, exists := v.spent[op]; !exists {
			v.spent[op] = &spentState{out: out, hasOut: true}
		}
	}
	return p
}

// Get returns the pooled tx for hash, if present.
func (v *TxPoolView) Get(hash [32]byte) (*PooledTx, bool) {
	p, ok := v.byHash[hash]
	return p, ok
}

// Exists reports whether hash is pooled.
func (v *TxPoolView) Exists(hash [32]byte) bool {
	_, ok := v.byHash[hash]
	return ok
}

// SpenderOf reports the pooled tx currently consuming outpoint, if any.
func (v *TxPoolView) SpenderOf(op TxOutpoint) ([32]byte, bool) {
	st, ok := v.spent[op]
	if !ok || !st.isSpent {
		return [32]byte{}, false
	}
	return st.spentBy, true
}

// UnspentOutput returns the pool-local unspent output at op, if any pooled
// tx still owns it unconsumed.
func (v *TxPoolView) UnspentOutput(op TxOutpoint) (TxOut, bool) {
	st, ok := v.spent[op]
	if !ok || st.isSpent || !st.hasOut {
		return TxOut{}, false
	}
	return st.out, true
}

// ByOrder returns pooled tx in ascending sequence-number order.
func (v *TxPoolView) ByOrder() []*PooledTx {
	out := make([]*PooledTx, len(v.byOrder))
	copy(out, v.byOrder)
	return out
}

// Remove deletes hash from the view and clears its own output entries
// from the spent map. It does not cascade to descendants; callers use
// InvalidateSpent for that.
func (v *TxPoolView) Remove(hash [32]byte) (*PooledTx, bool) {
	p, ok := v.byHash[hash]
	if !ok {
		return nil, false
	}
	delete(v.byHash, hash)
	v.removeSorted(p)

	for _, in := range p.Tx.Inputs {
		if st, ok := v.spent[in]; ok && st.isSpent && st.spentBy == hash {
			delete(v.spent, in)
		}
	}
	for i := range p.Tx.Outputs {
		delete(v.spent, TxOutpoint{TxID: hash, Index: uint32(i)})
	}
	return p, true
}

// InvalidateSpent removes hash and every pooled descendant that spends,
// directly or transitively, one of its outputs. Returns every removed
// hash in removal order: descending sequence number, so a descendant
// pooled after its parent is removed and listed before that parent.
func (v *TxPoolView) InvalidateSpent(hash [32]byte) [][32]byte {
	p, ok := v.byHash[hash]
	if !ok {
		return nil
	}
	var removed [][32]byte
	var branch []*PooledTx
	seen := make(map[[32]byte]bool)
	queue := []*PooledTx{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.Tx.Hash] {
			continue
		}
		seen[cur.Tx.Hash] = true
		for i := range cur.Tx.Outputs {
			op := TxOutpoint{TxID: cur.Tx.Hash, Index: uint32(i)}
			if spender, ok := v.SpenderOf(op); ok && spender != cur.Tx.Hash {
				if child, ok := v.byHash[spender]; ok {
					queue = append(queue, child)
				}
			}
		}
		branch = append(branch, cur)
	}
	sort.Slice(branch, func(i, j int) bool { return branch[i].SequenceNumber > branch[j].SequenceNumber })
	for _, cur := range branch {
		v.Remove(cur.Tx.Hash)
		removed = append(removed, cur.Tx.Hash)
	}
	return removed
}

// Len reports how many transactions are pooled.
func (v *TxPoolView) Len() int { return len(v.byHash) }
