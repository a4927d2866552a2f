package usecases

import (
	"context"

	"github.com/veil-vpn/veil/internal/domain/node"
)

// NodeStatusUseCase exposes a snapshot of the node registry for operators.
type NodeStatusUseCase struct {
	registry *node.Registry
}

// NewNodeStatusUseCase creates a new NodeStatusUseCase
func NewNodeStatusUseCase(registry *node.Registry) *NodeStatusUseCase {
	return &NodeStatusUseCase{registry: registry}
}

// Execute returns the per-node load snapshot.
func (uc *NodeStatusUseCase) Execute(_ context.Context) []node.NodeStatus {
	return uc.registry.Status()
}
