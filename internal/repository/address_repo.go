package repository

import (
	"context"

	"gorm.io/gorm"

	"bikerental/internal/domain"
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Address, error) {
	var out []domain.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Address{}).Where("user_id = ?", a.UserID).Count(&count).Error; err != nil {
			return err
		}
		// the first address becomes primary
		if count == 0 {
			a.IsPrimary = true
		} else if a.IsPrimary {
			if err := clearPrimary(tx, a.UserID); err != nil {
				return err
			}
		}
		return tx.Create(a).Error
	})
}

func (r *AddressRepository) GetPrimary(ctx context.Context, userID int64) (*domain.Address, error) {
	var a domain.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_primary = ?", userID, true).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetPrimary makes one address the user's primary inside a single
// transaction so a user never has two primaries.
func (r *AddressRepository) SetPrimary(ctx context.Context, userID, addressID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a domain.Address
		if err := tx.Where("id = ? AND user_id = ?", addressID, userID).First(&a).Error; err != nil {
			return err
		}
		if err := clearPrimary(tx, userID); err != nil {
			return err
		}
		return tx.Model(&domain.Address{}).
			Where("id = ?", addressID).
			Update("is_primary", true).Error
	})
}

func (r *AddressRepository) Delete(ctx context.Context, userID, addressID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		Delete(&domain.Address{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func clearPrimary(tx *gorm.DB, userID int64) error {
	return tx.Model(&domain.Address{}).
		Where("user_id = ? AND is_primary = ?", userID, true).
		Update("is_primary", false).Error
}
