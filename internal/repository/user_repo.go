package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

var userListConfig = querybuilder.Config{
	Alias:             "users",
	DefaultSortBy:     "created_at",
	SearchableFields:  []string{"email", "name"},
	AllowedSortFields: []string{"created_at", "email", "name"},
	FilterableFields:  []string{"role", "created_at"},
	SelectableFields:  []string{"email", "name", "role", "phone", "created_at"},
}

type UserRepository struct {
	db   *gorm.DB
	list *querybuilder.Builder[domain.User]
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db:   db,
		list: querybuilder.New[domain.User](db, userListConfig),
	}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = normalizeEmail(u.Email)
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile writes the editable profile columns only.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).
		Model(u).
		Select("name", "phone", "avatar_url").
		Updates(u).Error
}

func (r *UserRepository) List(ctx context.Context, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.User], error) {
	return r.list.BuildAndExecute(ctx, params, nil, nil, nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
