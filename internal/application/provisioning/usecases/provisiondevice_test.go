package usecases

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-vpn/veil/internal/application/testutil"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

const testUserID int64 = 12345

type provisionFixture struct {
	userRepo   *testutil.MockUserRepository
	deviceRepo *testutil.MockDeviceRepository
	txRepo     *testutil.MockTransactionRepository
	panel      *testutil.MockPanelClient
	registry   *node.Registry
	txRunner   *testutil.MockTxRunner
	uc         *ProvisionDeviceUseCase
}

func newProvisionFixture(t *testing.T, balance float64) *provisionFixture {
	t.Helper()

	f := &provisionFixture{
		userRepo:   testutil.NewMockUserRepository(),
		deviceRepo: testutil.NewMockDeviceRepository(),
		txRepo:     testutil.NewMockTransactionRepository(),
		panel:      testutil.NewMockPanelClient("nl1.example.com", "nl2.example.com"),
		txRunner:   testutil.NewMockTxRunner(),
	}

	n1, err := node.NewNode("nl-1", "nl1.example.com", 100)
	require.NoError(t, err)
	n2, err := node.NewNode("nl-2", "nl2.example.com", 100)
	require.NoError(t, err)
	f.registry, err = node.NewRegistry([]*node.Node{n1, n2})
	require.NoError(t, err)

	usr, err := user.NewUser(testUserID, "tester", "Test", "User", balance)
	require.NoError(t, err)
	usr.AcceptAgreement()
	require.NoError(t, f.userRepo.Create(context.Background(), usr))

	f.uc = NewProvisionDeviceUseCase(
		f.userRepo, f.deviceRepo, f.txRepo, f.panel, f.registry, f.txRunner,
		config.BillingConfig{PlanPricePerDay: 10},
		logger.NewLogger(),
	)
	return f
}

func TestProvisionDevice_Success(t *testing.T) {
	f := newProvisionFixture(t, 100)

	result, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.NoError(t, err)

	assert.Equal(t, device.StatusActive.String(), result.Status)
	assert.True(t, strings.HasPrefix(result.AccountName, "ios"))
	assert.NotEmpty(t, result.Link)
	require.NotNil(t, result.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(5*24*time.Hour), *result.ExpiresAt, time.Minute)

	// Balance 100 at 10/day for 5 days leaves 50.
	usr, err := f.userRepo.GetByExternalID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, usr.Balance())

	debits := f.txRepo.EntriesOfType(billing.TransactionProvisionDebit)
	require.Len(t, debits, 1)
	assert.Equal(t, -50.0, debits[0].Amount())
	assert.Equal(t, result.AccountName, debits[0].Reference())

	assert.Contains(t, f.panel.Accounts, result.AccountName)

	status := f.registry.Status()
	assert.Equal(t, 1, status[0].Current+status[1].Current)
}

func TestProvisionDevice_LoadFollowsFallbackLink(t *testing.T) {
	f := newProvisionFixture(t, 100)

	// nl-1 wins selection, but the control plane only hands out links on
	// nl-2; the counter must follow the link the device actually uses.
	f.panel.LinkHosts = []string{"nl2.example.com"}

	result, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.NoError(t, err)
	assert.Contains(t, result.Link, "nl2.example.com")

	status := f.registry.Status()
	assert.Equal(t, 0, status[0].Current)
	assert.Equal(t, 1, status[1].Current)
}

func TestProvisionDevice_InsufficientBalance(t *testing.T) {
	f := newProvisionFixture(t, 5)

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientBalanceError(err))

	// No remote call was made and the balance is untouched.
	assert.Zero(t, f.panel.CreateCalls)
	usr, err := f.userRepo.GetByExternalID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, usr.Balance())
	assert.Empty(t, f.txRepo.Entries)
}

func TestProvisionDevice_RemoteCreateFails(t *testing.T) {
	f := newProvisionFixture(t, 100)
	f.panel.CreateError = errors.NewUnavailableError("control plane unreachable")

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.Error(t, err)

	// The pending row is parked as failed and no money moved.
	dev, err := f.deviceRepo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, dev)
	assert.Equal(t, device.StatusFailed, dev.Status())

	usr, err := f.userRepo.GetByExternalID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, usr.Balance())
	assert.Empty(t, f.txRepo.Entries)
}

func TestProvisionDevice_BillingFailureRollsBackRemote(t *testing.T) {
	f := newProvisionFixture(t, 100)
	f.txRunner.RunError = assert.AnError

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.Error(t, err)
	assert.True(t, errors.IsPersistenceError(err))

	// The remote account was torn down again and the device is out of
	// rotation.
	assert.Empty(t, f.panel.Accounts)
	dev, err := f.deviceRepo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, dev)
	assert.Equal(t, device.StatusInactive, dev.Status())
}

func TestProvisionDevice_AgreementRequired(t *testing.T) {
	f := newProvisionFixture(t, 100)

	usr, err := user.NewUser(777, "fresh", "", "", 100)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Create(context.Background(), usr))

	_, err = f.uc.Execute(context.Background(), 777, device.TypeIOS, 5)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Zero(t, f.panel.CreateCalls)
}

func TestProvisionDevice_UnknownUser(t *testing.T) {
	f := newProvisionFixture(t, 100)

	_, err := f.uc.Execute(context.Background(), 99999, device.TypeIOS, 5)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestProvisionDevice_InvalidDays(t *testing.T) {
	f := newProvisionFixture(t, 100)

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 0)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 1000)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestProvisionDevice_DeviceLimit(t *testing.T) {
	f := newProvisionFixture(t, 1000)
	f.uc = NewProvisionDeviceUseCase(
		f.userRepo, f.deviceRepo, f.txRepo, f.panel, f.registry, f.txRunner,
		config.BillingConfig{PlanPricePerDay: 10, MaxDevicesPerUser: 1},
		logger.NewLogger(),
	)

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 1)
	require.NoError(t, err)

	_, err = f.uc.Execute(context.Background(), testUserID, device.TypeAndroid, 1)
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestRemoveDevice(t *testing.T) {
	f := newProvisionFixture(t, 100)

	result, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.NoError(t, err)

	remove := NewRemoveDeviceUseCase(f.deviceRepo, f.panel, f.registry, logger.NewLogger())
	require.NoError(t, remove.Execute(context.Background(), testUserID, result.ID))

	dev, err := f.deviceRepo.GetByID(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, device.StatusInactive, dev.Status())
	assert.NotContains(t, f.panel.Accounts, result.AccountName)

	// Counters returned to zero.
	status := f.registry.Status()
	assert.Zero(t, status[0].Current+status[1].Current)
}

func TestRemoveDevice_WrongOwner(t *testing.T) {
	f := newProvisionFixture(t, 100)

	result, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.NoError(t, err)

	remove := NewRemoveDeviceUseCase(f.deviceRepo, f.panel, f.registry, logger.NewLogger())
	err = remove.Execute(context.Background(), 555, result.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListDevices(t *testing.T) {
	f := newProvisionFixture(t, 1000)

	_, err := f.uc.Execute(context.Background(), testUserID, device.TypeIOS, 5)
	require.NoError(t, err)
	_, err = f.uc.Execute(context.Background(), testUserID, device.TypeAndroid, 5)
	require.NoError(t, err)

	list := NewListDevicesUseCase(f.deviceRepo, logger.NewLogger())
	devices, err := list.Execute(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestGrantTrial(t *testing.T) {
	f := newProvisionFixture(t, 0)

	grant := NewGrantTrialUseCase(f.deviceRepo, f.panel, f.registry, logger.NewLogger())
	require.NoError(t, grant.Execute(context.Background(), testUserID, 1))

	devices, err := f.deviceRepo.GetActiveByUserID(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, device.TypeTrial, devices[0].DeviceType())
	assert.True(t, strings.HasPrefix(devices[0].AccountName(), "trial"))
	require.NotNil(t, devices[0].ExpiresAt())
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *devices[0].ExpiresAt(), time.Minute)

	// No money moved for a trial.
	assert.Empty(t, f.txRepo.Entries)
}
