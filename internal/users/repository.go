package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindEligibleValidators(ctx context.Context, excludeIDs []uuid.UUID) ([]*User, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindEligibleValidators returns verified users holding the validator or
// admin role, minus the excluded IDs.
func (r *gormRepository) FindEligibleValidators(ctx context.Context, excludeIDs []uuid.UUID) ([]*User, error) {
	var candidates []*User
	query := r.db.WithContext(ctx).
		Where("role IN ?", []Role{RoleValidator, RoleAdmin}).
		Where("verified = ?", true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	err := query.Find(&candidates).Error
	return candidates, err
}
