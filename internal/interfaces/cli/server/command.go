// Package server implements the HTTP server command.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	accountUC "github.com/veil-vpn/veil/internal/application/account/usecases"
	provisioningUC "github.com/veil-vpn/veil/internal/application/provisioning/usecases"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/config"
	"github.com/veil-vpn/veil/internal/infrastructure/database"
	"github.com/veil-vpn/veil/internal/infrastructure/migration"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/infrastructure/repository"
	"github.com/veil-vpn/veil/internal/infrastructure/telegram"
	httpRouter "github.com/veil-vpn/veil/internal/interfaces/http"
	"github.com/veil-vpn/veil/internal/interfaces/http/handlers"
	"github.com/veil-vpn/veil/internal/shared/biztime"
	sharedConfig "github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/db"
	"github.com/veil-vpn/veil/internal/shared/goroutine"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the Veil HTTP API server with the configured node set.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := biztime.Init(cfg.Billing.Timezone); err != nil {
		return fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	log := logger.NewLogger()
	log.Infow("starting server", "environment", env, "auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	if autoMigrate {
		migrationManager := migration.NewManager(env)
		if err := migrationManager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
			log.Fatalw("auto-migration failed", "error", err)
		}
	}

	registry, err := buildRegistry(cfg.Nodes)
	if err != nil {
		log.Fatalw("failed to build node registry", "error", err)
	}

	panelClient, err := panel.NewHTTPClient(cfg.Panel, log)
	if err != nil {
		log.Fatalw("failed to create panel client", "error", err)
	}

	userRepo := repository.NewUserRepository(database.Get(), log)
	deviceRepo := repository.NewDeviceRepository(database.Get(), log)
	txRepo := repository.NewTransactionRepository(database.Get(), log)
	referralRepo := repository.NewReferralRepository(database.Get(), log)
	txManager := db.NewTransactionManager(database.Get())
	notifier := telegram.NewBotService(cfg.Telegram, log)

	if err := seedRegistry(cmd.Context(), deviceRepo, registry); err != nil {
		log.Warnw("failed to seed node load counters", "error", err)
	}

	grantTrialUC := provisioningUC.NewGrantTrialUseCase(deviceRepo, panelClient, registry, log)

	accountHandler := handlers.NewAccountHandler(
		accountUC.NewRegisterUserUseCase(userRepo, txRepo, cfg.Billing, log),
		accountUC.NewAcceptAgreementUseCase(userRepo, log),
		accountUC.NewTopUpBalanceUseCase(userRepo, txRepo, referralRepo, txManager, notifier, cfg.Billing, log),
		accountUC.NewAttachReferralUseCase(userRepo, referralRepo, grantTrialUC, cfg.Billing, log),
		accountUC.NewAccountSummaryUseCase(userRepo, deviceRepo, txRepo, referralRepo, cfg.Billing, log),
	)
	deviceHandler := handlers.NewDeviceHandler(
		provisioningUC.NewProvisionDeviceUseCase(userRepo, deviceRepo, txRepo, panelClient, registry, txManager, cfg.Billing, log),
		provisioningUC.NewRemoveDeviceUseCase(deviceRepo, panelClient, registry, log),
		provisioningUC.NewListDevicesUseCase(deviceRepo, log),
		provisioningUC.NewGetDeviceUseCase(deviceRepo, log),
		grantTrialUC,
	)
	nodeHandler := handlers.NewNodeHandler(provisioningUC.NewNodeStatusUseCase(registry))

	router := httpRouter.NewRouter(accountHandler, deviceHandler, nodeHandler, log)
	router.SetupRoutes(cfg)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	goroutine.SafeGo(log, "http-server", func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("failed to start server", "error", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func buildRegistry(nodeConfigs []sharedConfig.NodeConfig) (*node.Registry, error) {
	nodes := make([]*node.Node, 0, len(nodeConfigs))
	for _, nc := range nodeConfigs {
		n, err := node.NewNode(nc.Name, nc.Host, nc.MaxUsers)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nc.Name, err)
		}
		nodes = append(nodes, n)
	}
	return node.NewRegistry(nodes)
}

// seedRegistry restores advisory load counters from the active devices in
// storage so a restarted server does not start balancing from zero.
func seedRegistry(ctx context.Context, deviceRepo device.Repository, registry *node.Registry) error {
	active, err := deviceRepo.GetAllActive(ctx)
	if err != nil {
		return err
	}

	loads := make(map[string]int)
	for _, dev := range active {
		link := panel.ParseLink(dev.ConfigSnapshot())
		if link.Host == "" {
			continue
		}
		loads[link.Host]++
	}

	for _, host := range registry.Hosts() {
		registry.SetLoad(host, loads[host])
	}
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
