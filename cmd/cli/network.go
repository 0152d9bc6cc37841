package cli

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/synledger/fullnode/core"
)

var (
	netNode *core.Node
	netChan *core.NetChannel
	netPool *core.TxPool
	netMu   sync.RWMutex
)

func netInit(cmd *cobra.Command, _ []string) error {
	netMu.RLock()
	ready := netNode != nil
	netMu.RUnlock()
	if ready {
		return nil
	}
	_ = godotenv.Load()

	if lv := viper.GetString("logging.level"); lv != "" {
		level, err := logrus.ParseLevel(lv)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
	}

	var primaryFork core.ForkID
	copy(primaryFork[:], []byte(viper.GetString("network.genesis_hash")))

	chain := core.NewMemChain(primaryFork)
	pool := core.NewTxPool(chain, chain)
	chain.AttachTxPool(pool)

	ch := core.NewNetChannel(core.RoleBackbone, primaryFork, chain, chain, chain, nil)

	listenAddr := viper.GetString("network.listen_addr")
	if listenAddr == "" {
		listenAddr = "/ip4/0.0.0.0/tcp/0"
	}
	n, err := core.NewNode(core.NodeConfig{
		ListenAddr:     listenAddr,
		BootstrapPeers: viper.GetStringSlice("network.bootstrap_peers"),
		DiscoveryTag:   viper.GetString("network.discovery_tag"),
	}, ch)
	if err != nil {
		return err
	}

	netMu.Lock()
	netNode = n
	netChan = ch
	netPool = pool
	netMu.Unlock()
	return nil
}

func netStart(cmd *cobra.Command, _ []string) error {
	netMu.RLock()
	n := netNode
	netMu.RUnlock()
	if n == nil {
		return fmt.Errorf("cli: network not initialized")
	}
	go n.Run()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		_ = n.Close()
		os.Exit(0)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "network started, %d peers known\n", len(n.Peers()))
	return nil
}

func netStop(cmd *cobra.Command, _ []string) error {
	netMu.RLock()
	n := netNode
	netMu.RUnlock()
	if n == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "not running")
		return nil
	}
	_ = n.Close()
	netMu.Lock()
	netNode = nil
	netChan = nil
	netPool = nil
	netMu.Unlock()
	fmt.Fprintln(cmd.OutOrStdout(), "stopped")
	return nil
}

func netPeers(cmd *cobra.Command, _ []string) error {
	netMu.RLock()
	n := netNode
	netMu.RUnlock()
	if n == nil {
		return fmt.Errorf("cli: network not running")
	}
	for _, p := range n.Peers() {
		fmt.Fprintln(cmd.OutOrStdout(), p.String())
	}
	return nil
}

var netRootCmd = &cobra.Command{Use: "network", Short: "Peer transport controls", PersistentPreRunE: netInit}
var netStartCmd = &cobra.Command{Use: "start", Short: "Start the libp2p node", Args: cobra.NoArgs, RunE: netStart}
var netStopCmd = &cobra.Command{Use: "stop", Short: "Stop the libp2p node", Args: cobra.NoArgs, RunE: netStop}
var netPeersCmd = &cobra.Command{Use: "peers", Short: "List known peers", Args: cobra.NoArgs, RunE: netPeers}

func init() {
	netRootCmd.AddCommand(netStartCmd, netStopCmd, netPeersCmd)
}

// NetworkCmd exposes peer transport commands.
var NetworkCmd = netRootCmd

// RegisterNetwork adds the network commands to root.
func RegisterNetwork(root *cobra.Command) { root.AddCommand(NetworkCmd) }

func init() { RegisterNetwork(RootCmd) }
