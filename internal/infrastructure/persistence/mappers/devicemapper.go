package mappers

import (
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/models"
)

// DeviceMapper handles the conversion between domain entities and persistence models
type DeviceMapper interface {
	ToEntity(model *models.DeviceModel) (*device.Device, error)
	ToModel(entity *device.Device) (*models.DeviceModel, error)
	ToEntities(models []*models.DeviceModel) ([]*device.Device, error)
}

type deviceMapper struct{}

// NewDeviceMapper creates a new device mapper
func NewDeviceMapper() DeviceMapper {
	return &deviceMapper{}
}

func (m *deviceMapper) ToEntity(model *models.DeviceModel) (*device.Device, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := device.ReconstructDevice(
		model.ID,
		model.UserExternalID,
		device.Type(model.DeviceType),
		model.AccountName,
		model.ConfigSnapshot,
		device.Status(model.Status),
		model.CreatedAt,
		model.UpdatedAt,
		model.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct device entity: %w", err)
	}

	return entity, nil
}

func (m *deviceMapper) ToModel(entity *device.Device) (*models.DeviceModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.DeviceModel{
		ID:             entity.ID(),
		UserExternalID: entity.UserExternalID(),
		DeviceType:     entity.DeviceType().String(),
		AccountName:    entity.AccountName(),
		ConfigSnapshot: entity.ConfigSnapshot(),
		Status:         entity.Status().String(),
		ExpiresAt:      entity.ExpiresAt(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}, nil
}

func (m *deviceMapper) ToEntities(deviceModels []*models.DeviceModel) ([]*device.Device, error) {
	entities := make([]*device.Device, 0, len(deviceModels))
	for _, model := range deviceModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
