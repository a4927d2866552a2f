package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	sweepUC "github.com/veil-vpn/veil/internal/application/sweep/usecases"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/cache"
	"github.com/veil-vpn/veil/internal/infrastructure/config"
	"github.com/veil-vpn/veil/internal/infrastructure/database"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/infrastructure/repository"
	"github.com/veil-vpn/veil/internal/infrastructure/scheduler"
	"github.com/veil-vpn/veil/internal/infrastructure/telegram"
	"github.com/veil-vpn/veil/internal/shared/biztime"
	sharedConfig "github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/db"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := biztime.Init(cfg.Billing.Timezone); err != nil {
		fmt.Printf("failed to initialize business timezone: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger()
	log.Infow("starting sweeper", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

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
	txManager := db.NewTransactionManager(database.Get())
	notifier := telegram.NewBotService(cfg.Telegram, log)
	warningGate := cache.NewWarningDeduplicator(redisClient)

	warningWindow := time.Duration(cfg.Sweep.WarningWindowHours) * time.Hour
	warningCooldown := time.Duration(cfg.Sweep.WarningCooldownHours) * time.Hour

	expireUC := sweepUC.NewExpireDevicesUseCase(deviceRepo, panelClient, registry, notifier, log)
	warnUC := sweepUC.NewWarnExpiringDevicesUseCase(deviceRepo, warningGate, notifier, warningWindow, warningCooldown, log)
	reconcileUC := sweepUC.NewReconcileDevicesUseCase(deviceRepo, panelClient, registry, notifier, log)
	pruneUC := sweepUC.NewPruneOrphanAccountsUseCase(deviceRepo, panelClient, log)
	chargeUC := sweepUC.NewChargeDailyUsageUseCase(
		userRepo, deviceRepo, txRepo, panelClient, registry, txManager,
		warningGate, notifier, cfg.Billing, warningCooldown, log,
	)

	manager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		log.Fatalw("failed to create scheduler", "error", err)
	}

	if err := manager.RegisterExpiryJobs(cfg.Sweep, expireUC, warnUC); err != nil {
		log.Fatalw("failed to register expiry jobs", "error", err)
	}
	if err := manager.RegisterReconcileJobs(cfg.Sweep, reconcileUC, pruneUC); err != nil {
		log.Fatalw("failed to register reconcile jobs", "error", err)
	}
	if err := manager.RegisterBillingJobs(chargeUC); err != nil {
		log.Fatalw("failed to register billing jobs", "error", err)
	}

	manager.Start()
	log.Infow("sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Infow("received signal, shutting down", "signal", sig)

	if err := manager.Stop(); err != nil {
		log.Errorw("scheduler shutdown failed", "error", err)
	}

	log.Infow("sweeper stopped")
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
