// Command fullnoded runs the peer synchronization subsystem as a
// standalone process: it loads configuration, wires NetChannel and TxPool
// to a libp2p Node, loads any persisted mempool, and serves until a
// termination signal arrives.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/synledger/fullnode/core"
	"github.com/synledger/fullnode/pkg/config"
)

func main() {
	env := flag.String("env", "", "configuration overlay name (config/<env>.yaml)")
	dev := flag.Bool("dev", false, "run against an in-memory reference chain instead of a real datastore")
	flag.Parse()

	cfg, err := config.Load(*env)
	if err != nil {
		log.WithError(err).Fatal("fullnoded: load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("fullnoded: invalid config")
	}

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if !*dev {
		log.Fatal("fullnoded: only -dev mode is implemented; a production BlockChain/CoreProtocol backend is an external collaborator per spec §4.4")
	}

	var primaryFork core.ForkID
	copy(primaryFork[:], []byte(cfg.Network.GenesisHash))

	chain := core.NewMemChain(primaryFork)
	pool := core.NewTxPool(chain, chain)
	chain.AttachTxPool(pool)

	role := roleFromConfig(cfg.Network.Role)
	ch := core.NewNetChannel(role, primaryFork, chain, chain, chain, func(nonce core.PeerNonce, reason core.MisbehaviorReason) {
		log.WithFields(log.Fields{"peer": nonce, "reason": reason}).Warn("fullnoded: peer misbehavior")
	})

	if n, err := core.LoadTxPool(pool, cfg.TxPool.DataPath); err != nil {
		log.WithError(err).Warn("fullnoded: load persisted mempool")
	} else if n > 0 {
		log.WithField("count", n).Info("fullnoded: restored persisted mempool")
	}

	node, err := core.NewNode(core.NodeConfig{
		ListenAddr:     cfg.Network.ListenAddr,
		BootstrapPeers: cfg.Network.BootstrapPeers,
		DiscoveryTag:   cfg.Network.DiscoveryTag,
	}, ch)
	if err != nil {
		log.WithError(err).Fatal("fullnoded: start node")
	}
	go node.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("fullnoded: shutting down")
	if err := core.SaveTxPool(pool, cfg.TxPool.DataPath); err != nil {
		log.WithError(err).Warn("fullnoded: save mempool on shutdown")
	}
	if err := node.Close(); err != nil {
		log.WithError(err).Warn("fullnoded: close node")
	}
}

func roleFromConfig(r config.Role) core.NodeRole {
	switch r {
	case config.RoleFork:
		return core.RoleFork
	case config.RoleConsensus:
		return core.RoleConsensus
	default:
		return core.RoleBackbone
	}
}
