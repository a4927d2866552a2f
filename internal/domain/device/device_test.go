package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevice(t *testing.T) {
	d, err := NewDevice(12345, TypeIOS, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(12345), d.UserExternalID())
	assert.Equal(t, TypeIOS, d.DeviceType())
	assert.Equal(t, StatusProvisioning, d.Status())
	assert.Empty(t, d.AccountName())
	assert.Nil(t, d.ExpiresAt())
	assert.False(t, d.IsActive())
}

func TestNewDevice_InvalidOwner(t *testing.T) {
	_, err := NewDevice(0, TypeIOS, nil)
	assert.Error(t, err)

	_, err = NewDevice(-5, TypeAndroid, nil)
	assert.Error(t, err)
}

func TestNewDevice_InvalidType(t *testing.T) {
	_, err := NewDevice(12345, Type("toaster"), nil)
	assert.Error(t, err)
}

func TestDevice_Lifecycle(t *testing.T) {
	d, err := NewDevice(12345, TypeAndroid, nil)
	require.NoError(t, err)

	require.NoError(t, d.SetID(7))
	require.NoError(t, d.AssignAccountName("android7abc123"))
	require.NoError(t, d.Activate("vless://example"))

	assert.Equal(t, StatusActive, d.Status())
	assert.Equal(t, "vless://example", d.ConfigSnapshot())
	assert.True(t, d.IsActive())

	d.Deactivate()
	assert.Equal(t, StatusInactive, d.Status())
	assert.False(t, d.IsActive())

	// idempotent
	d.Deactivate()
	assert.Equal(t, StatusInactive, d.Status())
}

func TestDevice_ActivateRequiresAccountName(t *testing.T) {
	d, err := NewDevice(12345, TypeIOS, nil)
	require.NoError(t, err)

	assert.Error(t, d.Activate("vless://example"))
}

func TestDevice_ActivateOnlyFromProvisioning(t *testing.T) {
	d, err := NewDevice(12345, TypeIOS, nil)
	require.NoError(t, err)
	require.NoError(t, d.AssignAccountName("ios1abc"))
	require.NoError(t, d.Activate("vless://example"))

	assert.Error(t, d.Activate("vless://again"))
}

func TestDevice_MarkFailed(t *testing.T) {
	d, err := NewDevice(12345, TypeIOS, nil)
	require.NoError(t, err)

	require.NoError(t, d.MarkFailed())
	assert.Equal(t, StatusFailed, d.Status())

	assert.Error(t, d.MarkFailed())
}

func TestDevice_SetIDOnce(t *testing.T) {
	d, err := NewDevice(12345, TypeIOS, nil)
	require.NoError(t, err)

	require.NoError(t, d.SetID(1))
	assert.Error(t, d.SetID(2))
	assert.Equal(t, uint(1), d.ID())
}

func TestDevice_Expiry(t *testing.T) {
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	soon := now.Add(12 * time.Hour)
	far := now.Add(72 * time.Hour)

	expired, err := NewDevice(1, TypeTrial, &past)
	require.NoError(t, err)
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.ExpiresWithin(now, 24*time.Hour))

	expiring, err := NewDevice(1, TypeIOS, &soon)
	require.NoError(t, err)
	assert.False(t, expiring.IsExpired(now))
	assert.True(t, expiring.ExpiresWithin(now, 24*time.Hour))

	healthy, err := NewDevice(1, TypeIOS, &far)
	require.NoError(t, err)
	assert.False(t, healthy.IsExpired(now))
	assert.False(t, healthy.ExpiresWithin(now, 24*time.Hour))

	perpetual, err := NewDevice(1, TypeIOS, nil)
	require.NoError(t, err)
	assert.False(t, perpetual.IsExpired(now))
	assert.False(t, perpetual.ExpiresWithin(now, 24*time.Hour))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"ios", TypeIOS, false},
		{"IOS", TypeIOS, false},
		{"  android ", TypeAndroid, false},
		{"windows", TypeWindows, false},
		{"macos", TypeMacOS, false},
		{"linux", TypeLinux, false},
		{"trial", TypeTrial, false},
		{"", "", true},
		{"freebsd", "", true},
	}

	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		assert.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestType_AccountPrefix(t *testing.T) {
	assert.Equal(t, "ios", TypeIOS.AccountPrefix())
	assert.Equal(t, "trial", TypeTrial.AccountPrefix())
}

func TestType_IsTrial(t *testing.T) {
	assert.True(t, TypeTrial.IsTrial())
	assert.False(t, TypeIOS.IsTrial())
}
