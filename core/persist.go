package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/rlp"
	log "github.com/sirupsen/logrus"
)

// persistedEntry is one (fork, txid, assembled tx) record in txpool.dat,
// ordered by sequence number within its fork as §6 requires.
type persistedEntry struct {
	Fork ForkID
	Txid [32]byte
	Tx   rlpTx
}

// SaveTxPool writes pool's contents to path as a length-prefixed vector of
// (fork_hash, (txid, assembled_tx)) records ordered by sequence number,
// per §6 "Persisted state".
func SaveTxPool(pool *TxPool, path string) error {
	pool.mu.RLock()
	entries := make([]persistedEntry, 0)
	for fork, view := range pool.views {
		for _, pt := range view.ByOrder() {
			entries = append(entries, persistedEntry{Fork: fork, Txid: pt.Tx.Hash, Tx: toRLPTx(pt.Tx)})
		}
	}
	pool.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("txpool: create %s: %w", path, err)
	}
	defer f.Close()

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(entries)))
	if _, err := f.Write(countBuf[:]); err != nil {
		return fmt.Errorf("txpool: write count: %w", err)
	}
	for _, e := range entries {
		b, err := rlp.EncodeToBytes(e)
		if err != nil {
			return fmt.Errorf("txpool: encode entry: %w", err)
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := f.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// LoadTxPool reads path (written by SaveTxPool), re-pushing every entry
// into pool through the normal validation path, and deletes path on
// success to prevent a double-apply on the next restart. A missing file is
// not an error: a fresh node has nothing to load.
func LoadTxPool(pool *TxPool, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("txpool: open %s: %w", path, err)
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(f, countBuf[:]); err != nil {
		f.Close()
		return 0, fmt.Errorf("txpool: read count: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])

	loaded := 0
	for i := uint32(0); i < count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			f.Close()
			return loaded, fmt.Errorf("txpool: read entry length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(f, buf); err != nil {
			f.Close()
			return loaded, fmt.Errorf("txpool: read entry: %w", err)
		}
		var e persistedEntry
		if err := rlp.DecodeBytes(buf, &e); err != nil {
			log.WithError(err).Warn("txpool: skipping corrupt persisted entry")
			continue
		}
		tx := fromRLPTx(e.Tx)
		height := uint32(0)
		if loc, ok := pool.chain.GetBlockLocation(tx.AnchorBlock); ok {
			height = loc.Height
		}
		if _, errno := pool.Push(tx, height); errno != ErrOK && errno != ErrAlreadyHave {
			log.WithField("errno", errno).Warn("txpool: dropping persisted tx that failed revalidation")
			continue
		}
		loaded++
	}
	f.Close()

	if err := os.Remove(path); err != nil {
		return loaded, fmt.Errorf("txpool: remove %s after load: %w", path, err)
	}
	return loaded, nil
}
