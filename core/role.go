package core

import "fmt"

// NodeRole selects which forks a node's NetChannel tracks. Immutable after
// construction.
type NodeRole uint8

const (
	RoleBackbone NodeRole = iota
	RoleFork
	RoleConsensus
)

func (r NodeRole) String() string {
	switch r {
	case RoleBackbone:
		return "BACKBONE"
	case RoleFork:
		return "FORK"
	case RoleConsensus:
		return "CONSENSUS"
	default:
		return fmt.Sprintf("NodeRole(%d)", uint8(r))
	}
}

// InScope reports whether a message referencing fork primary (the genesis
// / primary-chain fork id) is within this role's jurisdiction. FORK nodes
// ignore the primary fork entirely; CONSENSUS nodes ignore every
// non-primary fork; BACKBONE nodes accept everything.
func (r NodeRole) InScope(fork, primary [32]byte) bool {
	isPrimary := fork == primary
	switch r {
	case RoleBackbone:
		return true
	case RoleFork:
		return !isPrimary
	case RoleConsensus:
		return isPrimary
	default:
		return false
	}
}
