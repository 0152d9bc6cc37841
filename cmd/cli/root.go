// Package cli provides cobra subcommands that start a node inside the CLI
// process and inspect its peers and mempool.
package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level CLI command; the init functions of network.go
// and mempool.go add their commands to it.
var RootCmd = &cobra.Command{
	Use:   "fullnode-cli",
	Short: "Start and inspect an in-process peer synchronization node",
}
