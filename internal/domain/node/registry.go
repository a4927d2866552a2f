package node

import (
	"fmt"
	"sync"
)

// NodeStatus is a point-in-time snapshot of one node for reporting.
type NodeStatus struct {
	Name        string  `json:"name"`
	Host        string  `json:"host"`
	Current     int     `json:"current"`
	MaxUsers    int     `json:"max_users"`
	LoadPercent float64 `json:"load_percent"`
}

// Registry holds the configured nodes and their advisory load counters. All
// methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	nodes []*Node
}

// NewRegistry builds a registry from the configured nodes. At least one node
// is required and hosts must be unique.
func NewRegistry(nodes []*Node) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n.Host()]; dup {
			return nil, fmt.Errorf("duplicate node host %q", n.Host())
		}
		seen[n.Host()] = struct{}{}
	}
	return &Registry{nodes: nodes}, nil
}

// SelectOptimalHost returns the host of the node with the lowest load
// percentage. Ties go to the node listed first. Selection never fails even
// when every node is at capacity; the counter is advisory and the control
// plane is the authority.
func (r *Registry) SelectOptimalHost() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := r.nodes[0]
	for _, n := range r.nodes[1:] {
		if n.LoadPercent() < best.LoadPercent() {
			best = n
		}
	}
	return best.Host()
}

// IncrementLoad bumps the counter of the node with the given host. At
// capacity the counter stays put and false is returned; the caller may treat
// that as advisory back-pressure.
func (r *Registry) IncrementLoad(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.findLocked(host)
	if n == nil || n.IsFull() {
		return false
	}
	n.current++
	return true
}

// DecrementLoad lowers the counter of the node with the given host. The
// counter never goes below zero; decrementing an unknown host is a no-op so
// accounts whose node was removed from config can still be torn down.
func (r *Registry) DecrementLoad(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.findLocked(host)
	if n == nil || n.current == 0 {
		return
	}
	n.current--
}

// SetLoad overwrites the counter for the given host, used by reconciliation
// to realign the advisory counters with control-plane truth. The value is
// clamped to the 0..maxUsers bounds the counter guarantees elsewhere.
func (r *Registry) SetLoad(host string, current int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.findLocked(host)
	if n == nil {
		return
	}
	if current < 0 {
		current = 0
	}
	if current > n.maxUsers {
		current = n.maxUsers
	}
	n.current = current
}

// Status returns a snapshot of every node in configuration order.
func (r *Registry) Status() []NodeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]NodeStatus, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, NodeStatus{
			Name:        n.Name(),
			Host:        n.Host(),
			Current:     n.Current(),
			MaxUsers:    n.MaxUsers(),
			LoadPercent: n.LoadPercent(),
		})
	}
	return out
}

// Hosts returns the configured node hosts in order.
func (r *Registry) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n.Host())
	}
	return out
}

// Contains reports whether a host belongs to the configured node set.
func (r *Registry) Contains(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(host) != nil
}

func (r *Registry) findLocked(host string) *Node {
	for _, n := range r.nodes {
		if n.Host() == host {
			return n
		}
	}
	return nil
}
