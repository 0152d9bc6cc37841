package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheHeightInterval bounds how many recent parent-hash keys a TxCache
// retains.
const CacheHeightInterval = 23

// BlockTemplate is the cached result of arrange_block_tx for a given
// parent block hash.
type BlockTemplate struct {
	Txs []*PooledTx
	Fee uint64
}

// TxCache is the per-fork pre-arranged block template cache keyed by
// parent block hash, retained for the most recent CacheHeightInterval
// heights. Backed by an LRU so eviction never requires the caller to
// track heights explicitly.
type TxCache struct {
	lru *lru.Cache[[32]byte, BlockTemplate]
}

// NewTxCache constructs a TxCache bounded to CacheHeightInterval entries.
func NewTxCache() *TxCache {
	c, _ := lru.New[[32]byte, BlockTemplate](CacheHeightInterval)
	return &TxCache{lru: c}
}

// Get returns the cached template for parentHash, if present.
func (c *TxCache) Get(parentHash [32]byte) (BlockTemplate, bool) {
	return c.lru.Get(parentHash)
}

// Put stores a freshly computed template under parentHash.
func (c *TxCache) Put(parentHash [32]byte, tmpl BlockTemplate) {
	c.lru.Add(parentHash, tmpl)
}

// Evict drops any cached template for parentHash, used when the chain
// head the template was built for is no longer current.
func (c *TxCache) Evict(parentHash [32]byte) {
	c.lru.Remove(parentHash)
}
