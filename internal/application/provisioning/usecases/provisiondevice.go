package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/application/provisioning/dto"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/id"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// TransactionRunner runs fn inside one storage transaction.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProvisionDeviceUseCase is the provisioning orchestrator. It validates
// affordability, picks a node, creates the remote account, persists the
// device and debits the balance.
//
// The local row is written first, in provisioning status, and the remote
// account name is derived from its ID. A crashed or retried attempt then
// converges on the same remote name instead of leaking duplicate accounts.
type ProvisionDeviceUseCase struct {
	userRepo   user.Repository
	deviceRepo device.Repository
	txRepo     billing.TransactionRepository
	panel      panel.Client
	registry   *node.Registry
	txRunner   TransactionRunner
	billing    config.BillingConfig
	logger     logger.Interface
}

// NewProvisionDeviceUseCase creates a new ProvisionDeviceUseCase
func NewProvisionDeviceUseCase(
	userRepo user.Repository,
	deviceRepo device.Repository,
	txRepo billing.TransactionRepository,
	panelClient panel.Client,
	registry *node.Registry,
	txRunner TransactionRunner,
	billingCfg config.BillingConfig,
	log logger.Interface,
) *ProvisionDeviceUseCase {
	return &ProvisionDeviceUseCase{
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		txRepo:     txRepo,
		panel:      panelClient,
		registry:   registry,
		txRunner:   txRunner,
		billing:    billingCfg,
		logger:     log,
	}
}

// Execute provisions one device for the given user. Days bounds the paid
// period; the device expires at now + days.
func (uc *ProvisionDeviceUseCase) Execute(ctx context.Context, userExternalID int64, deviceType device.Type, days int) (*dto.DeviceDTO, error) {
	if days <= 0 || days > 365 {
		return nil, errors.NewValidationError("days must be between 1 and 365")
	}

	usr, err := uc.userRepo.GetByExternalID(ctx, userExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if usr == nil {
		return nil, errors.NewNotFoundError("user not found")
	}
	if !usr.AgreementAccepted() {
		return nil, errors.NewValidationError("user agreement not accepted")
	}

	if uc.billing.MaxDevicesPerUser > 0 {
		count, err := uc.deviceRepo.CountActiveByUserID(ctx, userExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to count devices: %w", err)
		}
		if count >= int64(uc.billing.MaxDevicesPerUser) {
			return nil, errors.NewConflictError("device limit reached")
		}
	}

	cost := uc.billing.PlanPricePerDay * float64(days)
	if !usr.CanAfford(cost) {
		return nil, errors.NewInsufficientBalanceError(
			"balance does not cover the requested period",
			fmt.Sprintf("balance %.2f, cost %.2f", usr.Balance(), cost),
		)
	}

	expiresAt := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	dev, err := device.NewDevice(userExternalID, deviceType, &expiresAt)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.deviceRepo.Create(ctx, dev); err != nil {
		return nil, errors.NewPersistenceError("failed to record device", err.Error())
	}

	accountName := fmt.Sprintf("%s%d%s", deviceType.AccountPrefix(), dev.ID(), id.MustGenerate(6))
	if err := dev.AssignAccountName(accountName); err != nil {
		return nil, fmt.Errorf("failed to assign account name: %w", err)
	}
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		return nil, errors.NewPersistenceError("failed to record account name", err.Error())
	}

	host := uc.registry.SelectOptimalHost()

	account, err := uc.panel.CreateAccount(ctx, panel.CreateAccountParams{
		Username: accountName,
		ExpireAt: &expiresAt,
	})
	if err != nil {
		uc.failDevice(ctx, dev)
		uc.logger.Errorw("remote account creation failed",
			"user_external_id", userExternalID,
			"account_name", accountName,
			"error", err,
		)
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.NewProvisionError("remote account creation failed", err.Error())
	}

	link, ok := account.PreferredLink(host)
	if !ok {
		uc.rollbackRemote(ctx, dev, accountName)
		return nil, errors.NewProvisionError("control plane returned no connection links")
	}

	if err := dev.Activate(link.Raw); err != nil {
		uc.rollbackRemote(ctx, dev, accountName)
		return nil, fmt.Errorf("failed to activate device: %w", err)
	}

	err = uc.txRunner.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.deviceRepo.Update(txCtx, dev); err != nil {
			return err
		}
		if err := uc.userRepo.UpdateBalance(txCtx, userExternalID, -cost); err != nil {
			return err
		}
		entry, err := billing.NewTransaction(userExternalID, -cost, billing.TransactionProvisionDebit, accountName)
		if err != nil {
			return err
		}
		return uc.txRepo.Create(txCtx, entry)
	})
	if err != nil {
		// A paid-for remote account exists but billing did not stick.
		// Tear the remote account down again so no unbilled access
		// remains; the reconcile pass catches anything this misses.
		uc.logger.Errorw("provisioning billing failed, rolling back remote account",
			"user_external_id", userExternalID,
			"account_name", accountName,
			"error", err,
		)
		uc.rollbackRemote(ctx, dev, accountName)
		return nil, errors.NewPersistenceError("failed to persist provisioned device", err.Error())
	}

	// The fallback link may sit on a different node than the selected
	// host; the counter tracks where the device actually landed.
	if !uc.registry.IncrementLoad(link.Host) {
		uc.logger.Warnw("advisory load not recorded", "host", link.Host)
	}

	uc.logger.Infow("device provisioned",
		"user_external_id", userExternalID,
		"device_id", dev.ID(),
		"account_name", accountName,
		"host", link.Host,
		"expires_at", expiresAt,
		"cost", cost,
	)

	result := dto.FromDevice(dev)
	return &result, nil
}

func (uc *ProvisionDeviceUseCase) failDevice(ctx context.Context, dev *device.Device) {
	if err := dev.MarkFailed(); err != nil {
		uc.logger.Warnw("failed to mark device failed", "device_id", dev.ID(), "error", err)
		return
	}
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		uc.logger.Errorw("failed to persist failed device", "device_id", dev.ID(), "error", err)
	}
}

// rollbackRemote undoes a remote create after a later step failed, then
// parks the local row out of active rotation.
func (uc *ProvisionDeviceUseCase) rollbackRemote(ctx context.Context, dev *device.Device, accountName string) {
	if err := uc.panel.DeleteAccount(ctx, accountName); err != nil {
		uc.logger.Errorw("failed to roll back remote account, reconciliation will prune it",
			"account_name", accountName,
			"error", err,
		)
	}
	dev.Deactivate()
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		uc.logger.Errorw("failed to deactivate device after rollback", "device_id", dev.ID(), "error", err)
	}
}
