package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-vpn/veil/internal/application/testutil"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

var testBilling = config.BillingConfig{
	PlanPricePerDay:   10,
	InitialBalance:    50,
	ReferralRate:      0.15,
	MinTopUp:          10,
	MaxTopUp:          10000,
	TrialRefereeDays:  1,
	TrialReferrerDays: 2,
}

type trialGranterStub struct {
	grants map[int64]int
	err    error
}

func newTrialGranterStub() *trialGranterStub {
	return &trialGranterStub{grants: make(map[int64]int)}
}

func (s *trialGranterStub) Execute(_ context.Context, userExternalID int64, days int) error {
	if s.err != nil {
		return s.err
	}
	s.grants[userExternalID] = days
	return nil
}

func TestRegisterUser_NewUserGetsWelcomeCredit(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	uc := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())

	usr, err := uc.Execute(context.Background(), 100, "alice", "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, usr.Balance())

	credits := txRepo.EntriesOfType(billing.TransactionTopUp)
	require.Len(t, credits, 1)
	assert.Equal(t, 50.0, credits[0].Amount())
	assert.Equal(t, "welcome_credit", credits[0].Reference())
}

func TestRegisterUser_RepeatContactRefreshesProfile(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	uc := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())

	first, err := uc.Execute(context.Background(), 100, "alice", "Alice", "")
	require.NoError(t, err)

	// Simulate spending, then the user comes back with a new username.
	require.NoError(t, userRepo.UpdateBalance(context.Background(), 100, -30))

	again, err := uc.Execute(context.Background(), 100, "alice_new", "Alice", "A")
	require.NoError(t, err)
	assert.Equal(t, first.ID(), again.ID())
	assert.Equal(t, "alice_new", again.Username())
	assert.Equal(t, 20.0, again.Balance())

	// No second welcome credit.
	assert.Len(t, txRepo.EntriesOfType(billing.TransactionTopUp), 1)
}

func TestTopUpBalance(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	refRepo := testutil.NewMockReferralRepository()
	notifier := testutil.NewMockNotifier()
	uc := NewTopUpBalanceUseCase(userRepo, txRepo, refRepo, testutil.NewMockTxRunner(), notifier, testBilling, logger.NewLogger())

	reg := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())
	_, err := reg.Execute(context.Background(), 100, "alice", "", "")
	require.NoError(t, err)

	result, err := uc.Execute(context.Background(), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Amount)
	assert.NotEmpty(t, result.Reference)
	assert.Equal(t, 150.0, result.NewBalance)

	usr, err := userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 150.0, usr.Balance())

	// No referrer, no bonus.
	assert.Empty(t, txRepo.EntriesOfType(billing.TransactionReferralBonus))
	assert.Empty(t, notifier.Bonuses)
}

func TestTopUpBalance_ReferralBonus(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	refRepo := testutil.NewMockReferralRepository()
	notifier := testutil.NewMockNotifier()

	reg := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())
	_, err := reg.Execute(context.Background(), 100, "referrer", "", "")
	require.NoError(t, err)
	_, err = reg.Execute(context.Background(), 200, "referee", "", "")
	require.NoError(t, err)

	link, err := billing.NewReferral(100, 200)
	require.NoError(t, err)
	require.NoError(t, refRepo.Create(context.Background(), link))

	uc := NewTopUpBalanceUseCase(userRepo, txRepo, refRepo, testutil.NewMockTxRunner(), notifier, testBilling, logger.NewLogger())
	_, err = uc.Execute(context.Background(), 200, 100)
	require.NoError(t, err)

	// 15% of 100 lands with the referrer.
	referrer, err := userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 65.0, referrer.Balance())
	assert.Equal(t, 15.0, referrer.ReferralBalance())

	bonuses := txRepo.EntriesOfType(billing.TransactionReferralBonus)
	require.Len(t, bonuses, 1)
	assert.Equal(t, 15.0, bonuses[0].Amount())
	assert.Equal(t, int64(100), bonuses[0].UserExternalID())

	stored, err := refRepo.GetByReferee(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, 15.0, stored.TotalEarnings())

	assert.Equal(t, []float64{15}, notifier.Bonuses)
}

func TestTopUpBalance_Bounds(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	uc := NewTopUpBalanceUseCase(userRepo, txRepo, testutil.NewMockReferralRepository(), testutil.NewMockTxRunner(), testutil.NewMockNotifier(), testBilling, logger.NewLogger())

	_, err := uc.Execute(context.Background(), 100, 5)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = uc.Execute(context.Background(), 100, 99999)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestAttachReferral(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	refRepo := testutil.NewMockReferralRepository()
	granter := newTrialGranterStub()

	reg := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())
	_, err := reg.Execute(context.Background(), 100, "referrer", "", "")
	require.NoError(t, err)
	_, err = reg.Execute(context.Background(), 200, "referee", "", "")
	require.NoError(t, err)

	uc := NewAttachReferralUseCase(userRepo, refRepo, granter, testBilling, logger.NewLogger())
	require.NoError(t, uc.Execute(context.Background(), 100, 200))

	link, err := refRepo.GetByReferee(context.Background(), 200)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, int64(100), link.ReferrerExternalID())

	// Referee gets one trial day, referrer two.
	assert.Equal(t, 1, granter.grants[200])
	assert.Equal(t, 2, granter.grants[100])

	// A second referrer is rejected.
	err = uc.Execute(context.Background(), 300, 200)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err) || errors.IsConflictError(err))
}

func TestAttachReferral_SelfReferral(t *testing.T) {
	uc := NewAttachReferralUseCase(
		testutil.NewMockUserRepository(),
		testutil.NewMockReferralRepository(),
		newTrialGranterStub(),
		testBilling,
		logger.NewLogger(),
	)

	err := uc.Execute(context.Background(), 100, 100)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestAcceptAgreement(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	txRepo := testutil.NewMockTransactionRepository()
	reg := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())
	_, err := reg.Execute(context.Background(), 100, "alice", "", "")
	require.NoError(t, err)

	uc := NewAcceptAgreementUseCase(userRepo, logger.NewLogger())
	require.NoError(t, uc.Execute(context.Background(), 100))

	usr, err := userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, usr.AgreementAccepted())

	// Idempotent.
	require.NoError(t, uc.Execute(context.Background(), 100))

	err = uc.Execute(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestAccountSummary(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	deviceRepo := testutil.NewMockDeviceRepository()
	txRepo := testutil.NewMockTransactionRepository()
	refRepo := testutil.NewMockReferralRepository()

	reg := NewRegisterUserUseCase(userRepo, txRepo, testBilling, logger.NewLogger())
	_, err := reg.Execute(context.Background(), 100, "alice", "Alice", "")
	require.NoError(t, err)

	dev, err := device.NewDevice(100, device.TypeIOS, nil)
	require.NoError(t, err)
	require.NoError(t, deviceRepo.Create(context.Background(), dev))
	require.NoError(t, dev.AssignAccountName("ios1abc"))
	require.NoError(t, dev.Activate("vless://mock@nl1.example.com:443"))
	require.NoError(t, deviceRepo.Update(context.Background(), dev))

	uc := NewAccountSummaryUseCase(userRepo, deviceRepo, txRepo, refRepo, testBilling, logger.NewLogger())
	summary, err := uc.Execute(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, "Alice", summary.DisplayName)
	assert.Equal(t, 50.0, summary.Balance)
	assert.Equal(t, int64(1), summary.ActiveDevices)
	assert.Equal(t, 10.0, summary.DailyCost)
	require.NotNil(t, summary.DaysRemaining)
	assert.Equal(t, 5.0, *summary.DaysRemaining)
	require.Len(t, summary.RecentEntries, 1)
	assert.Equal(t, "welcome_credit", summary.RecentEntries[0].Reference)
}
