package core

// PooledTx extends a transaction with mempool-internal bookkeeping: its
// strict pool order (SequenceNumber), a cached serialized size, and the
// slot reserved for an as-yet-unseen child (NextSequenceNumber).
type PooledTx struct {
	Tx Transaction

	// SequenceNumber = (poolCounter << 24) | slot. The high bits are a
	// monotonic counter reset when the pool empties; the low 24 bits
	// order descendants before their parents' successors slot in.
	SequenceNumber uint64

	// NextSequenceNumber reserves the slot the next unseen child spending
	// this tx's output should receive: parentSlot - 1, or 0 when none has
	// been reserved yet.
	NextSequenceNumber uint64

	Size uint32
	Fee  uint64
}

const sequenceSlotBits = 24
const sequenceSlotMask = (uint64(1) << sequenceSlotBits) - 1

// poolCounter assigns the high bits of a new PooledTx's sequence number.
type poolCounter struct {
	next uint64
}

// advance returns the current pool epoch counter value and increments the
// counter.
func (c *poolCounter) advance() uint64 {
	v := c.next
	c.next++
	return v
}

func (c *poolCounter) reset() { c.next = 0 }

// newSequenceNumber builds a sequence number from a pool-epoch counter and
// a dependency slot.
func newSequenceNumber(counter, slot uint64) uint64 {
	return (counter << sequenceSlotBits) | (slot & sequenceSlotMask)
}

// slotOf extracts the dependency slot from a sequence number.
func slotOf(seq uint64) uint64 { return seq & sequenceSlotMask }

// counterOf extracts the pool-epoch counter from a sequence number.
func counterOf(seq uint64) uint64 { return seq >> sequenceSlotBits }
