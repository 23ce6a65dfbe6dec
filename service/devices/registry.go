package devices

import (
	"context"
	"errors"

	"github.com/storelinkhq/storelink-server/cmd/models"
	"gorm.io/gorm"
)

// GormRegistry implements TokenRegistry on the Postgres device table
type GormRegistry struct {
	db *gorm.DB
}

func NewGormRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

// Upsert writes a device token record keyed by the token value. On first
// sight CreatedAt is set by the insert; on re-registration the existing
// CreatedAt is read back and preserved while every other field and
// UpdatedAt are overwritten.
func (r *GormRegistry) Upsert(ctx context.Context, device models.DeviceToken) (models.DeviceToken, error) {
	var existing models.DeviceToken
	err := r.db.WithContext(ctx).First(&existing, "token = ?", device.Token).Error

	switch {
	case err == nil:
		device.CreatedAt = existing.CreatedAt
		if err := r.db.WithContext(ctx).Save(&device).Error; err != nil {
			return models.DeviceToken{}, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(&device).Error; err != nil {
			return models.DeviceToken{}, err
		}
	default:
		return models.DeviceToken{}, err
	}

	return device, nil
}

// Remove deletes a token record. Deleting a token that was never
// registered is a no-op, not an error.
func (r *GormRegistry) Remove(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Delete(&models.DeviceToken{}, "token = ?", token).Error
}
