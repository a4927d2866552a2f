package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-vpn/veil/internal/application/testutil"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

type sweepFixture struct {
	userRepo   *testutil.MockUserRepository
	deviceRepo *testutil.MockDeviceRepository
	txRepo     *testutil.MockTransactionRepository
	panel      *testutil.MockPanelClient
	registry   *node.Registry
	notifier   *testutil.MockNotifier
	gate       *testutil.MockWarningGate
	txRunner   *testutil.MockTxRunner
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	n1, err := node.NewNode("nl-1", "nl1.example.com", 100)
	require.NoError(t, err)
	registry, err := node.NewRegistry([]*node.Node{n1})
	require.NoError(t, err)

	return &sweepFixture{
		userRepo:   testutil.NewMockUserRepository(),
		deviceRepo: testutil.NewMockDeviceRepository(),
		txRepo:     testutil.NewMockTransactionRepository(),
		panel:      testutil.NewMockPanelClient("nl1.example.com"),
		registry:   registry,
		notifier:   testutil.NewMockNotifier(),
		gate:       testutil.NewMockWarningGate(),
		txRunner:   testutil.NewMockTxRunner(),
	}
}

// addActiveDevice provisions an active device with a matching remote account.
func (f *sweepFixture) addActiveDevice(t *testing.T, userID int64, devType device.Type, expiresAt *time.Time) *device.Device {
	t.Helper()
	ctx := context.Background()

	dev, err := device.NewDevice(userID, devType, expiresAt)
	require.NoError(t, err)
	require.NoError(t, f.deviceRepo.Create(ctx, dev))

	name := devType.AccountPrefix() + "mock"
	require.NoError(t, dev.AssignAccountName(name+"-"+time.Now().Format("150405.000000")))

	_, err = f.panel.CreateAccount(ctx, panel.CreateAccountParams{Username: dev.AccountName(), ExpireAt: expiresAt})
	require.NoError(t, err)

	require.NoError(t, dev.Activate("vless://mock@nl1.example.com:443#veil"))
	require.NoError(t, f.deviceRepo.Update(ctx, dev))
	f.registry.IncrementLoad("nl1.example.com")
	return dev
}

func (f *sweepFixture) addUser(t *testing.T, externalID int64, balance float64) {
	t.Helper()
	usr, err := user.NewUser(externalID, "tester", "Test", "User", balance)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Create(context.Background(), usr))
}

func TestExpireDevices(t *testing.T) {
	f := newSweepFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(48 * time.Hour)

	expired := f.addActiveDevice(t, 100, device.TypeIOS, &past)
	healthy := f.addActiveDevice(t, 200, device.TypeIOS, &future)

	uc := NewExpireDevicesUseCase(f.deviceRepo, f.panel, f.registry, f.notifier, logger.NewLogger())
	count, err := uc.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	dev, err := f.deviceRepo.GetByID(context.Background(), expired.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusInactive, dev.Status())
	assert.NotContains(t, f.panel.Accounts, expired.AccountName())

	dev, err = f.deviceRepo.GetByID(context.Background(), healthy.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusActive, dev.Status())

	// Exactly one notification, to the expired device's owner.
	assert.Equal(t, []int64{100}, f.notifier.Expired)

	// Load counter was returned.
	assert.Equal(t, 1, f.registry.Status()[0].Current)
}

func TestExpireDevices_TrialOnly(t *testing.T) {
	f := newSweepFixture(t)
	past := time.Now().UTC().Add(-time.Minute)

	trial := f.addActiveDevice(t, 100, device.TypeTrial, &past)
	paid := f.addActiveDevice(t, 100, device.TypeIOS, &past)

	uc := NewExpireDevicesUseCase(f.deviceRepo, f.panel, f.registry, f.notifier, logger.NewLogger())
	count, err := uc.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	dev, err := f.deviceRepo.GetByID(context.Background(), trial.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusInactive, dev.Status())

	// The paid device waits for the general pass.
	dev, err = f.deviceRepo.GetByID(context.Background(), paid.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusActive, dev.Status())
}

func TestExpireDevices_RemoteDeleteFailureStillDeactivates(t *testing.T) {
	f := newSweepFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	expired := f.addActiveDevice(t, 100, device.TypeIOS, &past)

	f.panel.DeleteError = assert.AnError

	uc := NewExpireDevicesUseCase(f.deviceRepo, f.panel, f.registry, f.notifier, logger.NewLogger())
	count, err := uc.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	dev, err := f.deviceRepo.GetByID(context.Background(), expired.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusInactive, dev.Status())
}

func TestWarnExpiringDevices_DedupAcrossRuns(t *testing.T) {
	f := newSweepFixture(t)
	soon := time.Now().UTC().Add(12 * time.Hour)
	f.addActiveDevice(t, 100, device.TypeIOS, &soon)

	uc := NewWarnExpiringDevicesUseCase(f.deviceRepo, f.gate, f.notifier, 24*time.Hour, time.Hour, logger.NewLogger())

	sent, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// The second hourly run stays silent.
	sent, err = uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	assert.Equal(t, []int64{100}, f.notifier.ExpiringSoon)
}

func TestReconcileDevices_VanishedRemote(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(48 * time.Hour)

	vanished := f.addActiveDevice(t, 100, device.TypeIOS, &future)
	intact := f.addActiveDevice(t, 200, device.TypeIOS, &future)

	// Simulate an out-of-band remote delete.
	require.NoError(t, f.panel.DeleteAccount(context.Background(), vanished.AccountName()))
	f.panel.DeleteCalls = 0

	uc := NewReconcileDevicesUseCase(f.deviceRepo, f.panel, f.registry, f.notifier, logger.NewLogger())
	count, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	dev, err := f.deviceRepo.GetByID(context.Background(), vanished.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusInactive, dev.Status())

	dev, err = f.deviceRepo.GetByID(context.Background(), intact.ID())
	require.NoError(t, err)
	assert.Equal(t, device.StatusActive, dev.Status())

	assert.Equal(t, []int64{100}, f.notifier.Disconnected)

	// Counters realigned to the single surviving device.
	assert.Equal(t, 1, f.registry.Status()[0].Current)
}

func TestPruneOrphanAccounts(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(48 * time.Hour)
	ctx := context.Background()

	claimed := f.addActiveDevice(t, 100, device.TypeIOS, &future)

	// An orphan: remote account with no local row.
	_, err := f.panel.CreateAccount(ctx, panel.CreateAccountParams{Username: "ios999orphan"})
	require.NoError(t, err)

	// An in-flight provisioning row: remote exists, local row still pending.
	pending, err := device.NewDevice(300, device.TypeAndroid, &future)
	require.NoError(t, err)
	require.NoError(t, f.deviceRepo.Create(ctx, pending))
	require.NoError(t, pending.AssignAccountName("android3pending"))
	require.NoError(t, f.deviceRepo.Update(ctx, pending))
	_, err = f.panel.CreateAccount(ctx, panel.CreateAccountParams{Username: "android3pending"})
	require.NoError(t, err)

	// A foreign account on the shared control plane: not our name prefix,
	// no local row, still not ours to delete.
	_, err = f.panel.CreateAccount(ctx, panel.CreateAccountParams{Username: "ops-monitoring-canary"})
	require.NoError(t, err)

	uc := NewPruneOrphanAccountsUseCase(f.deviceRepo, f.panel, logger.NewLogger())
	pruned, err := uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	assert.Contains(t, f.panel.Accounts, claimed.AccountName())
	assert.Contains(t, f.panel.Accounts, "android3pending")
	assert.Contains(t, f.panel.Accounts, "ops-monitoring-canary")
	assert.NotContains(t, f.panel.Accounts, "ios999orphan")
}

func newChargeUseCase(f *sweepFixture) *ChargeDailyUsageUseCase {
	return NewChargeDailyUsageUseCase(
		f.userRepo, f.deviceRepo, f.txRepo, f.panel, f.registry, f.txRunner,
		f.gate, f.notifier,
		config.BillingConfig{PlanPricePerDay: 10},
		time.Hour,
		logger.NewLogger(),
	)
}

func TestChargeDailyUsage_Debits(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)

	f.addUser(t, 100, 90)
	f.addActiveDevice(t, 100, device.TypeIOS, &future)

	uc := newChargeUseCase(f)
	visited, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, visited)

	usr, err := f.userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 80.0, usr.Balance())

	charges := f.txRepo.EntriesOfType(billing.TransactionDailyCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, -10.0, charges[0].Amount())

	// 80 remaining at 10/day is 8 days, no warning.
	assert.Empty(t, f.notifier.LowBalances)
	assert.Empty(t, f.notifier.Deactivated)
}

func TestChargeDailyUsage_DeactivatesInsteadOfNegative(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)

	// Two devices cost 20/day; balance 15 cannot cover it.
	f.addUser(t, 100, 15)
	d1 := f.addActiveDevice(t, 100, device.TypeIOS, &future)
	d2 := f.addActiveDevice(t, 100, device.TypeAndroid, &future)

	uc := newChargeUseCase(f)
	_, err := uc.Execute(context.Background())
	require.NoError(t, err)

	// All devices down, balance untouched and non-negative.
	for _, id := range []uint{d1.ID(), d2.ID()} {
		dev, err := f.deviceRepo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, device.StatusInactive, dev.Status())
	}

	usr, err := f.userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 15.0, usr.Balance())
	assert.Empty(t, f.txRepo.Entries)

	assert.Equal(t, []int64{100}, f.notifier.Deactivated)
}

func TestChargeDailyUsage_LowBalanceWarning(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)

	// 25 at 10/day: after today's charge 15 remains, 1.5 days left.
	f.addUser(t, 100, 25)
	f.addActiveDevice(t, 100, device.TypeIOS, &future)

	uc := newChargeUseCase(f)
	_, err := uc.Execute(context.Background())
	require.NoError(t, err)

	usr, err := f.userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 15.0, usr.Balance())
	assert.Equal(t, []int64{100}, f.notifier.LowBalances)
}

func TestChargeDailyUsage_FailureIsolation(t *testing.T) {
	f := newSweepFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)

	f.addUser(t, 100, 90)
	f.addActiveDevice(t, 100, device.TypeIOS, &future)
	f.addActiveDevice(t, 200, device.TypeIOS, &future)

	// User 200 has devices but no user row; the broken entry must not stop
	// the pass for user 100.
	f.userRepo.BillableIDs = []int64{200, 100}

	uc := newChargeUseCase(f)
	visited, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, visited)

	usr, err := f.userRepo.GetByExternalID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 80.0, usr.Balance())
}
