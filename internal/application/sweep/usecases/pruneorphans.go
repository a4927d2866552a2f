package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// PruneOrphanAccountsUseCase removes remote accounts bearing our name
// prefixes that no local device claims. Orphans appear when provisioning
// crashed between the remote create
// and the local persist; this pass is the healing direction that runs from
// control-plane state back to the local store.
type PruneOrphanAccountsUseCase struct {
	deviceRepo device.Repository
	panel      panel.Client
	logger     logger.Interface
}

// NewPruneOrphanAccountsUseCase creates a new PruneOrphanAccountsUseCase
func NewPruneOrphanAccountsUseCase(
	deviceRepo device.Repository,
	panelClient panel.Client,
	log logger.Interface,
) *PruneOrphanAccountsUseCase {
	return &PruneOrphanAccountsUseCase{
		deviceRepo: deviceRepo,
		panel:      panelClient,
		logger:     log,
	}
}

// Execute returns the number of remote accounts deleted.
func (uc *PruneOrphanAccountsUseCase) Execute(ctx context.Context) (int, error) {
	remote, err := uc.panel.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote accounts: %w", err)
	}

	names, err := uc.deviceRepo.ListActiveAccountNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list local account names: %w", err)
	}
	claimed := make(map[string]struct{}, len(names))
	for _, n := range names {
		claimed[n] = struct{}{}
	}

	pruned := 0
	for _, account := range remote {
		// Only accounts we named are ours to prune; a shared control
		// plane carries accounts other systems created.
		if !device.OwnsAccountName(account.Username) {
			continue
		}
		if _, ok := claimed[account.Username]; ok {
			continue
		}

		// Double-check against the full device table: an in-flight
		// provisioning row claims its name before the remote create, so
		// skipping provisioning-status devices avoids racing a live
		// request.
		dev, err := uc.deviceRepo.GetByAccountName(ctx, account.Username)
		if err != nil {
			uc.logger.Warnw("failed to check local claim, skipping orphan",
				"account_name", account.Username,
				"error", err,
			)
			continue
		}
		if dev != nil && dev.Status() == device.StatusProvisioning {
			continue
		}

		if err := uc.panel.DeleteAccount(ctx, account.Username); err != nil {
			uc.logger.Errorw("failed to delete orphaned remote account",
				"account_name", account.Username,
				"error", err,
			)
			continue
		}
		pruned++
		uc.logger.Infow("orphaned remote account deleted", "account_name", account.Username)
	}

	return pruned, nil
}
