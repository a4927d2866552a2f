package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// AcceptAgreementUseCase records the user's acceptance of the service terms.
type AcceptAgreementUseCase struct {
	userRepo user.Repository
	logger   logger.Interface
}

// NewAcceptAgreementUseCase creates a new AcceptAgreementUseCase
func NewAcceptAgreementUseCase(userRepo user.Repository, log logger.Interface) *AcceptAgreementUseCase {
	return &AcceptAgreementUseCase{
		userRepo: userRepo,
		logger:   log,
	}
}

// Execute marks the agreement accepted. Idempotent.
func (uc *AcceptAgreementUseCase) Execute(ctx context.Context, externalID int64) error {
	usr, err := uc.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if usr == nil {
		return errors.NewNotFoundError("user not found")
	}
	if usr.AgreementAccepted() {
		return nil
	}

	usr.AcceptAgreement()
	if err := uc.userRepo.Update(ctx, usr); err != nil {
		return fmt.Errorf("failed to persist agreement: %w", err)
	}

	uc.logger.Infow("agreement accepted", "external_id", externalID)
	return nil
}
