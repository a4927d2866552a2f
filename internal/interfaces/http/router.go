// Package http wires the HTTP interface layer: router, middleware and handlers.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/veil-vpn/veil/internal/infrastructure/config"
	"github.com/veil-vpn/veil/internal/interfaces/http/handlers"
	"github.com/veil-vpn/veil/internal/interfaces/http/middleware"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// Router holds the gin engine and all registered handlers.
type Router struct {
	engine         *gin.Engine
	accountHandler *handlers.AccountHandler
	deviceHandler  *handlers.DeviceHandler
	nodeHandler    *handlers.NodeHandler
	logger         logger.Interface
}

func NewRouter(
	accountHandler *handlers.AccountHandler,
	deviceHandler *handlers.DeviceHandler,
	nodeHandler *handlers.NodeHandler,
	log logger.Interface,
) *Router {
	return &Router{
		engine:         gin.New(),
		accountHandler: accountHandler,
		deviceHandler:  deviceHandler,
		nodeHandler:    nodeHandler,
		logger:         log,
	}
}

// SetupRoutes configures middleware and all HTTP routes
func (r *Router) SetupRoutes(cfg *config.Config) {
	handlers.RegisterValidations()

	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.engine.GET("/health", r.nodeHandler.HealthCheck)

	api := r.engine.Group("/api")
	{
		api.POST("/users", r.accountHandler.RegisterUser)
		api.GET("/users/:id", r.accountHandler.GetAccountSummary)
		api.POST("/users/:id/agreement", r.accountHandler.AcceptAgreement)
		api.POST("/users/:id/topup", r.accountHandler.TopUpBalance)
		api.POST("/referrals", r.accountHandler.AttachReferral)

		api.POST("/users/:id/devices", r.deviceHandler.ProvisionDevice)
		api.GET("/users/:id/devices", r.deviceHandler.ListDevices)
		api.GET("/users/:id/devices/:deviceID", r.deviceHandler.GetDevice)
		api.DELETE("/users/:id/devices/:deviceID", r.deviceHandler.RemoveDevice)
		api.POST("/users/:id/trial", r.deviceHandler.GrantTrial)

		api.GET("/nodes/status", r.nodeHandler.GetNodeStatus)
	}
}

// GetEngine returns the underlying gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
