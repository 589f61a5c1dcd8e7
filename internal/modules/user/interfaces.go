package user

import (
	"context"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, u *domain.User) error
	List(ctx context.Context, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.User], error)
}

type AddressRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Address, error)
	Create(ctx context.Context, a *domain.Address) error
	SetPrimary(ctx context.Context, userID, addressID int64) error
	Delete(ctx context.Context, userID, addressID int64) error
}
