package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/mappers"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/models"
	"github.com/veil-vpn/veil/internal/shared/db"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// DeviceRepository implements the device repository interface
type DeviceRepository struct {
	db     *gorm.DB
	mapper mappers.DeviceMapper
	logger logger.Interface
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(gdb *gorm.DB, log logger.Interface) device.Repository {
	return &DeviceRepository{
		db:     gdb,
		mapper: mappers.NewDeviceMapper(),
		logger: log,
	}
}

func (r *DeviceRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create persists a new device row and writes the generated ID back to the
// entity. The row is created before the remote account so a retried
// provisioning attempt can find its own half-finished work.
func (r *DeviceRepository) Create(ctx context.Context, entity *device.Device) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map device entity: %w", err)
	}

	if err := r.conn(ctx).WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create device", "user_external_id", entity.UserExternalID(), "error", err)
		return fmt.Errorf("failed to create device: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set device ID: %w", err)
	}
	return nil
}

// Update persists state transitions of an existing device.
func (r *DeviceRepository) Update(ctx context.Context, entity *device.Device) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map device entity: %w", err)
	}

	result := r.conn(ctx).WithContext(ctx).Model(&models.DeviceModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"account_name":    model.AccountName,
			"config_snapshot": model.ConfigSnapshot,
			"status":          model.Status,
			"expires_at":      model.ExpiresAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("device %d not found", model.ID)
	}
	return nil
}

// GetByID retrieves a device by ID. Returns nil when not found.
func (r *DeviceRepository) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	var model models.DeviceModel
	if err := r.conn(ctx).WithContext(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByAccountName retrieves a device by its remote account name. Returns nil
// when not found.
func (r *DeviceRepository) GetByAccountName(ctx context.Context, accountName string) (*device.Device, error) {
	var model models.DeviceModel
	if err := r.conn(ctx).WithContext(ctx).Where("account_name = ?", accountName).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device by account name: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetActiveByUserID retrieves the user's active devices, newest first.
func (r *DeviceRepository) GetActiveByUserID(ctx context.Context, userExternalID int64) ([]*device.Device, error) {
	var deviceModels []*models.DeviceModel
	err := r.conn(ctx).WithContext(ctx).
		Where("user_external_id = ? AND status = ?", userExternalID, device.StatusActive.String()).
		Order("created_at DESC").
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// GetAllActive retrieves every active device.
func (r *DeviceRepository) GetAllActive(ctx context.Context) ([]*device.Device, error) {
	var deviceModels []*models.DeviceModel
	err := r.conn(ctx).WithContext(ctx).
		Where("status = ?", device.StatusActive.String()).
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// GetExpiredActive retrieves active devices whose expiry has passed.
func (r *DeviceRepository) GetExpiredActive(ctx context.Context, now time.Time, trialOnly bool) ([]*device.Device, error) {
	query := r.conn(ctx).WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", device.StatusActive.String(), now)
	if trialOnly {
		query = query.Where("device_type = ?", device.TypeTrial.String())
	}

	var deviceModels []*models.DeviceModel
	if err := query.Find(&deviceModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// GetExpiringActive retrieves active devices expiring within the window.
func (r *DeviceRepository) GetExpiringActive(ctx context.Context, now time.Time, window time.Duration) ([]*device.Device, error) {
	var deviceModels []*models.DeviceModel
	err := r.conn(ctx).WithContext(ctx).
		Where("status = ? AND expires_at > ? AND expires_at <= ?", device.StatusActive.String(), now, now.Add(window)).
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// CountActiveByUserID counts the user's active devices.
func (r *DeviceRepository) CountActiveByUserID(ctx context.Context, userExternalID int64) (int64, error) {
	var count int64
	err := r.conn(ctx).WithContext(ctx).Model(&models.DeviceModel{}).
		Where("user_external_id = ? AND status = ?", userExternalID, device.StatusActive.String()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count user devices: %w", err)
	}
	return count, nil
}

// ListActiveAccountNames returns the remote account names of every active
// device.
func (r *DeviceRepository) ListActiveAccountNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.conn(ctx).WithContext(ctx).Model(&models.DeviceModel{}).
		Where("status = ? AND account_name <> ''", device.StatusActive.String()).
		Pluck("account_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active account names: %w", err)
	}
	return names, nil
}
