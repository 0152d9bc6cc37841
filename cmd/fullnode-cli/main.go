// Command fullnode-cli is the operator-facing CLI: peer transport controls
// and mempool inspection against an in-process node, in the same spirit as
// the teacher repo's standalone cobra CLI binary.
package main

import (
	"os"

	"github.com/synledger/fullnode/cmd/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
