// Package node tracks the configured VPN nodes and the in-process load
// counters used to spread new accounts across them.
package node

import "fmt"

// Node is one VPN exit node known to this instance. Load is the number of
// active accounts believed to be assigned to it; the counter is advisory and
// periodically corrected from the control plane.
type Node struct {
	name     string
	host     string
	maxUsers int
	current  int
}

// NewNode creates a node with a zero load counter.
func NewNode(name, host string, maxUsers int) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("node name cannot be empty")
	}
	if host == "" {
		return nil, fmt.Errorf("node host cannot be empty")
	}
	if maxUsers <= 0 {
		return nil, fmt.Errorf("node max users must be positive")
	}
	return &Node{name: name, host: host, maxUsers: maxUsers}, nil
}

func (n *Node) Name() string { return n.name }
func (n *Node) Host() string { return n.host }
func (n *Node) MaxUsers() int { return n.maxUsers }
func (n *Node) Current() int { return n.current }

// LoadPercent returns the node's load as a percentage of capacity.
func (n *Node) LoadPercent() float64 {
	return float64(n.current) / float64(n.maxUsers) * 100
}

// IsFull reports whether the advisory counter has reached capacity.
func (n *Node) IsFull() bool {
	return n.current >= n.maxUsers
}
