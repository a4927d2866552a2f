package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veil-vpn/veil/internal/application/provisioning/usecases"
	"github.com/veil-vpn/veil/internal/shared/utils"
)

// NodeHandler exposes node load information.
type NodeHandler struct {
	nodeStatusUC *usecases.NodeStatusUseCase
}

func NewNodeHandler(nodeStatusUC *usecases.NodeStatusUseCase) *NodeHandler {
	return &NodeHandler{nodeStatusUC: nodeStatusUC}
}

func (h *NodeHandler) GetNodeStatus(c *gin.Context) {
	statuses := h.nodeStatusUC.Execute(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "", statuses)
}

// HealthCheck reports process liveness.
func (h *NodeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
