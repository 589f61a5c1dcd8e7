package repository

import (
	"context"

	"gorm.io/gorm"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

var bikeOwnerColumns = []string{"id", "name", "role"}

var bikeListConfig = querybuilder.Config{
	Alias:             "bikes",
	DefaultLimit:      20,
	DefaultSortBy:     "created_at",
	SearchableFields:  []string{"name", "brand", "model", "location"},
	AllowedSortFields: []string{"created_at", "price_per_day", "name"},
	FilterableFields:  []string{"type", "status", "price_per_day", "location", "owner_id", "created_at"},
	SelectableFields: []string{
		"owner_id", "name", "brand", "model", "type", "location",
		"price_per_day", "status", "image_url", "created_at",
	},
	NestedJoins: []querybuilder.NestedJoin{
		{Path: "Owner", Type: querybuilder.LeftJoin, Columns: bikeOwnerColumns},
	},
}

type BikeRepository struct {
	db   *gorm.DB
	list *querybuilder.Builder[domain.Bike]
}

func NewBikeRepository(db *gorm.DB) *BikeRepository {
	return &BikeRepository{
		db:   db,
		list: querybuilder.New[domain.Bike](db, bikeListConfig),
	}
}

func (r *BikeRepository) Create(ctx context.Context, b *domain.Bike) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BikeRepository) GetByID(ctx context.Context, id int64) (*domain.Bike, error) {
	var b domain.Bike
	err := r.db.WithContext(ctx).
		Joins("Owner", r.db.Select(bikeOwnerColumns)).
		Where("bikes.id = ?", id).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BikeRepository) Update(ctx context.Context, b *domain.Bike) error {
	return r.db.WithContext(ctx).
		Model(b).
		Select("name", "brand", "model", "type", "description", "location", "price_per_day", "status").
		Updates(b).Error
}

func (r *BikeRepository) SetImageURL(ctx context.Context, id int64, url string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Bike{}).
		Where("id = ?", id).
		Update("image_url", url).Error
}

func (r *BikeRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Bike{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BikeRepository) List(ctx context.Context, params querybuilder.QueryRequest, conds []querybuilder.Condition) (*querybuilder.PagedResult[domain.Bike], error) {
	return r.list.BuildAndExecute(ctx, params, conds, nil, nil)
}
