package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synledger/fullnode/core"
)

func mempoolList(cmd *cobra.Command, args []string) error {
	netMu.RLock()
	pool, n := netPool, netNode
	netMu.RUnlock()
	if pool == nil || n == nil {
		return fmt.Errorf("cli: network not running")
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("cli: fork must be a 32-byte hex string")
	}
	var fork core.ForkID
	copy(fork[:], raw)
	for _, txid := range pool.ListTx(fork) {
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(txid[:]))
	}
	return nil
}

func mempoolShow(cmd *cobra.Command, args []string) error {
	netMu.RLock()
	pool := netPool
	netMu.RUnlock()
	if pool == nil {
		return fmt.Errorf("cli: network not running")
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("cli: txid must be a 32-byte hex string")
	}
	var txid [32]byte
	copy(txid[:], raw)
	tx, ok := pool.Get(txid)
	if !ok {
		return fmt.Errorf("cli: tx %s not pooled", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "hash=%s inputs=%d outputs=%d size=%d\n",
		hex.EncodeToString(tx.Hash[:]), len(tx.Inputs), len(tx.Outputs), tx.Size)
	return nil
}

var mempoolRootCmd = &cobra.Command{Use: "mempool", Short: "Inspect the unconfirmed transaction pool"}
var mempoolListCmd = &cobra.Command{Use: "list <fork-hex>", Short: "List pooled tx-ids for a fork", Args: cobra.ExactArgs(1), RunE: mempoolList}
var mempoolShowCmd = &cobra.Command{Use: "show <txid-hex>", Short: "Show one pooled transaction", Args: cobra.ExactArgs(1), RunE: mempoolShow}

func init() {
	mempoolRootCmd.AddCommand(mempoolListCmd, mempoolShowCmd)
}

// MempoolCmd exposes mempool inspection commands.
var MempoolCmd = mempoolRootCmd

// RegisterMempool adds the mempool commands to root.
func RegisterMempool(root *cobra.Command) { root.AddCommand(MempoolCmd) }

func init() { RegisterMempool(RootCmd) }
