package core

// BlockLocation describes where a known block sits in the chain.
type BlockLocation struct {
	Fork       ForkID
	Height     uint32
	NextHash   [32]byte
	HasNext    bool
}

// MintType distinguishes the consensus mechanism that produced a block,
// used to tell a primary PoW block apart from a DPoS/consensus block when
// the scheduler decides whether to index it in the height->block cache.
type MintType uint8

const (
	MintPoW MintType = iota
	MintDPoS
)

// TxOutpoint names one output of a transaction.
type TxOutpoint struct {
	TxID  [32]byte
	Index uint32
}

// TxOut is a minimal spendable output: owning destination plus amount.
// Block-format internals beyond what the scheduler/mempool need are out of
// scope, per spec.
type TxOut struct {
	Dest  [32]byte
	Value uint64
}

// Unspent pairs an outpoint with its output for list_fork_unspent results.
type Unspent struct {
	Outpoint TxOutpoint
	Out      TxOut
}

// Transaction is the minimal transaction shape the scheduler/mempool
// operate on. A real node's transaction carries far more (witnesses,
// scripts, metadata); this is the subset §3/§4.3 reference directly.
type Transaction struct {
	Hash        [32]byte
	IsMint      bool
	AnchorBlock [32]byte
	Inputs      []TxOutpoint
	Outputs     []TxOut
	SendTo      [32]byte
	Timestamp   uint64
	Size        uint32
}

// Block is the minimal block shape the scheduler operates on.
type Block struct {
	Hash      [32]byte
	Prev      [32]byte
	Height    uint32
	Time      uint64
	Mint      MintType
	Txs       []Transaction
}

// BlockChain is the external capability backing chain lookups. Consumed
// read-only by Schedule's callers, NetChannel, and TxPool.
type BlockChain interface {
	Exists(hash [32]byte) bool
	GetLastBlock(fork ForkID) (hash [32]byte, height uint32, time uint64, mint MintType, ok bool)
	GetBlockLocation(hash [32]byte) (BlockLocation, bool)
	GetBlockLocator(fork ForkID, depth uint32, max int) [][32]byte
	GetBlockInv(fork ForkID, locator [][32]byte, max int) [][32]byte
	GetTxUnspent(fork ForkID, inputs []TxOutpoint) ([]TxOut, error)
	ExistsTx(txid [32]byte) bool
	GetTransaction(txid [32]byte) (Transaction, bool)
	VerifyRepeatBlock(fork ForkID, block Block) bool
}

// CoreProtocol validates transactions against consensus rules.
type CoreProtocol interface {
	GenesisBlockHash() [32]byte
	ValidateTransaction(tx Transaction, height uint32) Errno
	VerifyTransaction(tx Transaction, prevOutputs []TxOut, height uint32, fork ForkID) Errno
}

// Dispatcher is the ingestion entry point both the miner and NetChannel
// call to submit newly produced or received objects. Idempotent for
// ErrAlreadyHave.
type Dispatcher interface {
	AddNewBlock(block Block, source PeerNonce) Errno
	AddNewTx(tx Transaction, source PeerNonce) Errno
}
