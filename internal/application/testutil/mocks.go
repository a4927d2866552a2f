// Package testutil provides mock implementations for testing the application
// layer.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/infrastructure/cache"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
)

// MockUserRepository is an in-memory implementation of user.Repository.
type MockUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]*user.User
	nextID uint

	// Error injection for testing
	CreateError        error
	GetError           error
	UpdateError        error
	UpdateBalanceError error
	ListError          error

	// BillableIDs overrides ListExternalIDsWithActiveDevices when non-nil.
	BillableIDs []int64
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*user.User)}
}

func (m *MockUserRepository) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if u.ID() == 0 {
		m.nextID++
		if err := u.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.users[u.ExternalID()] = u
	return nil
}

func (m *MockUserRepository) GetByID(_ context.Context, id uint) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, u := range m.users {
		if u.ID() == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) GetByExternalID(_ context.Context, externalID int64) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.users[externalID], nil
}

func (m *MockUserRepository) Update(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.users[u.ExternalID()] = u
	return nil
}

// UpdateBalance rebuilds the stored entity with the shifted balance so tests
// observe balance changes without touching domain internals.
func (m *MockUserRepository) UpdateBalance(_ context.Context, externalID int64, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateBalanceError != nil {
		return m.UpdateBalanceError
	}
	return m.shiftBalance(externalID, delta, 0)
}

func (m *MockUserRepository) UpdateReferralBalance(_ context.Context, externalID int64, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateBalanceError != nil {
		return m.UpdateBalanceError
	}
	return m.shiftBalance(externalID, 0, delta)
}

func (m *MockUserRepository) shiftBalance(externalID int64, balanceDelta, referralDelta float64) error {
	u, ok := m.users[externalID]
	if !ok {
		return nil
	}
	rebuilt, err := user.ReconstructUser(
		u.ID(), u.ExternalID(), u.Username(), u.FirstName(), u.LastName(),
		u.Balance()+balanceDelta, u.ReferralBalance()+referralDelta,
		u.AgreementAccepted(), u.CreatedAt(), u.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	m.users[externalID] = rebuilt
	return nil
}

func (m *MockUserRepository) ListExternalIDsWithActiveDevices(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	if m.BillableIDs != nil {
		return m.BillableIDs, nil
	}
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MockDeviceRepository is an in-memory implementation of device.Repository.
type MockDeviceRepository struct {
	mu      sync.RWMutex
	devices map[uint]*device.Device
	nextID  uint

	// Error injection for testing
	CreateError error
	GetError    error
	UpdateError error
	ListError   error
}

// NewMockDeviceRepository creates a new mock device repository.
func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{devices: make(map[uint]*device.Device)}
}

func (m *MockDeviceRepository) Create(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if d.ID() == 0 {
		m.nextID++
		if err := d.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.devices[d.ID()] = d
	return nil
}

func (m *MockDeviceRepository) Update(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.devices[d.ID()] = d
	return nil
}

func (m *MockDeviceRepository) GetByID(_ context.Context, id uint) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.devices[id], nil
}

func (m *MockDeviceRepository) GetByAccountName(_ context.Context, accountName string) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, d := range m.devices {
		if d.AccountName() == accountName {
			return d, nil
		}
	}
	return nil, nil
}

func (m *MockDeviceRepository) GetActiveByUserID(_ context.Context, userExternalID int64) ([]*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*device.Device
	for _, d := range m.sorted() {
		if d.UserExternalID() == userExternalID && d.IsActive() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockDeviceRepository) GetAllActive(_ context.Context) ([]*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*device.Device
	for _, d := range m.sorted() {
		if d.IsActive() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockDeviceRepository) GetExpiredActive(_ context.Context, now time.Time, trialOnly bool) ([]*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*device.Device
	for _, d := range m.sorted() {
		if !d.IsActive() || !d.IsExpired(now) {
			continue
		}
		if trialOnly && !d.DeviceType().IsTrial() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MockDeviceRepository) GetExpiringActive(_ context.Context, now time.Time, window time.Duration) ([]*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*device.Device
	for _, d := range m.sorted() {
		if d.IsActive() && d.ExpiresWithin(now, window) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockDeviceRepository) CountActiveByUserID(ctx context.Context, userExternalID int64) (int64, error) {
	devices, err := m.GetActiveByUserID(ctx, userExternalID)
	if err != nil {
		return 0, err
	}
	return int64(len(devices)), nil
}

func (m *MockDeviceRepository) ListActiveAccountNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var names []string
	for _, d := range m.sorted() {
		if d.IsActive() && d.AccountName() != "" {
			names = append(names, d.AccountName())
		}
	}
	return names, nil
}

func (m *MockDeviceRepository) sorted() []*device.Device {
	out := make([]*device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// MockTransactionRepository records ledger entries in memory.
type MockTransactionRepository struct {
	mu      sync.RWMutex
	Entries []*billing.Transaction
	nextID  uint

	CreateError error
}

// NewMockTransactionRepository creates a new mock transaction repository.
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

func (m *MockTransactionRepository) Create(_ context.Context, tx *billing.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if tx.ID() == 0 {
		m.nextID++
		if err := tx.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.Entries = append(m.Entries, tx)
	return nil
}

func (m *MockTransactionRepository) ListByUser(_ context.Context, userExternalID int64, limit int) ([]*billing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*billing.Transaction
	for i := len(m.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Entries[i].UserExternalID() == userExternalID {
			out = append(out, m.Entries[i])
		}
	}
	return out, nil
}

// EntriesOfType returns recorded entries matching the given type.
func (m *MockTransactionRepository) EntriesOfType(txType billing.TransactionType) []*billing.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*billing.Transaction
	for _, e := range m.Entries {
		if e.Type() == txType {
			out = append(out, e)
		}
	}
	return out
}

// MockReferralRepository stores referral links in memory.
type MockReferralRepository struct {
	mu        sync.RWMutex
	referrals map[int64]*billing.Referral
	nextID    uint

	CreateError error
	GetError    error
}

// NewMockReferralRepository creates a new mock referral repository.
func NewMockReferralRepository() *MockReferralRepository {
	return &MockReferralRepository{referrals: make(map[int64]*billing.Referral)}
}

func (m *MockReferralRepository) Create(_ context.Context, r *billing.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if r.ID() == 0 {
		m.nextID++
		if err := r.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.referrals[r.RefereeExternalID()] = r
	return nil
}

func (m *MockReferralRepository) Update(_ context.Context, r *billing.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[r.RefereeExternalID()] = r
	return nil
}

func (m *MockReferralRepository) GetByReferee(_ context.Context, refereeExternalID int64) (*billing.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.referrals[refereeExternalID], nil
}

func (m *MockReferralRepository) ListByReferrer(_ context.Context, referrerExternalID int64) ([]*billing.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*billing.Referral
	for _, r := range m.referrals {
		if r.ReferrerExternalID() == referrerExternalID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPanelClient simulates the control plane in memory.
type MockPanelClient struct {
	mu       sync.RWMutex
	Accounts map[string]*panel.Account

	// Error injection for testing
	CreateError error
	GetError    error
	DeleteError error
	ListError   error

	// Call counters
	CreateCalls int
	DeleteCalls int

	// LinkHosts are the hosts used for the links of created accounts.
	LinkHosts []string
}

// NewMockPanelClient creates a new mock panel client.
func NewMockPanelClient(linkHosts ...string) *MockPanelClient {
	if len(linkHosts) == 0 {
		linkHosts = []string{"nl1.example.com"}
	}
	return &MockPanelClient{
		Accounts:  make(map[string]*panel.Account),
		LinkHosts: linkHosts,
	}
}

func (m *MockPanelClient) CreateAccount(_ context.Context, params panel.CreateAccountParams) (*panel.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	acct := &panel.Account{
		Username: params.Username,
		Status:   panel.AccountActive,
		ExpireAt: params.ExpireAt,
	}
	for _, host := range m.LinkHosts {
		acct.Links = append(acct.Links, panel.Link{
			Host: host,
			Raw:  "vless://mock@" + host + ":443#veil",
		})
	}
	m.Accounts[params.Username] = acct
	return acct, nil
}

func (m *MockPanelClient) GetAccount(_ context.Context, username string) (*panel.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Accounts[username], nil
}

func (m *MockPanelClient) DeleteAccount(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.Accounts, username)
	return nil
}

func (m *MockPanelClient) GetUsage(_ context.Context, username string) (*panel.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.Accounts[username]
	if !ok {
		return nil, nil
	}
	return &panel.Usage{Username: acct.Username, UsedTraffic: acct.UsedTraffic}, nil
}

func (m *MockPanelClient) ListAccounts(_ context.Context) ([]*panel.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	names := make([]string, 0, len(m.Accounts))
	for name := range m.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*panel.Account, 0, len(names))
	for _, name := range names {
		out = append(out, m.Accounts[name])
	}
	return out, nil
}

// MockNotifier records every notification.
type MockNotifier struct {
	mu sync.Mutex

	Expired      []int64
	ExpiringSoon []int64
	Disconnected []int64
	Deactivated  []int64
	LowBalances  []int64
	Bonuses      []float64
	SendError    error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) DeviceExpired(_ context.Context, userExternalID int64, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.Expired = append(m.Expired, userExternalID)
	return nil
}

func (m *MockNotifier) DeviceExpiringSoon(_ context.Context, userExternalID int64, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.ExpiringSoon = append(m.ExpiringSoon, userExternalID)
	return nil
}

func (m *MockNotifier) DeviceDisconnected(_ context.Context, userExternalID int64, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.Disconnected = append(m.Disconnected, userExternalID)
	return nil
}

func (m *MockNotifier) DevicesDeactivated(_ context.Context, userExternalID int64, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.Deactivated = append(m.Deactivated, userExternalID)
	return nil
}

func (m *MockNotifier) LowBalance(_ context.Context, userExternalID int64, _, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.LowBalances = append(m.LowBalances, userExternalID)
	return nil
}

func (m *MockNotifier) ReferralBonus(_ context.Context, referrerExternalID int64, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendError != nil {
		return m.SendError
	}
	m.Bonuses = append(m.Bonuses, amount)
	return nil
}

// MockWarningGate is an in-memory warning deduplicator.
type MockWarningGate struct {
	mu       sync.Mutex
	acquired map[string]bool

	AcquireError error
}

// NewMockWarningGate creates a new mock warning gate.
func NewMockWarningGate() *MockWarningGate {
	return &MockWarningGate{acquired: make(map[string]bool)}
}

func (m *MockWarningGate) TryAcquire(_ context.Context, warningType cache.WarningType, userExternalID int64, scope string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	key := fmt.Sprintf("%s:%d:%s", warningType, userExternalID, scope)
	if m.acquired[key] {
		return false, nil
	}
	m.acquired[key] = true
	return true, nil
}

// MockTxRunner runs the function directly without a real transaction.
type MockTxRunner struct {
	RunError error
}

// NewMockTxRunner creates a new mock transaction runner.
func NewMockTxRunner() *MockTxRunner {
	return &MockTxRunner{}
}

func (m *MockTxRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunError != nil {
		return m.RunError
	}
	return fn(ctx)
}
