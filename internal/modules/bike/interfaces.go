package bike

import (
	"context"
	"io"
	"time"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/repository"
)

type BikeRepository interface {
	Create(ctx context.Context, b *domain.Bike) error
	GetByID(ctx context.Context, id int64) (*domain.Bike, error)
	Update(ctx context.Context, b *domain.Bike) error
	SetImageURL(ctx context.Context, id int64, url string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, params querybuilder.QueryRequest, conds []querybuilder.Condition) (*querybuilder.PagedResult[domain.Bike], error)
}

type SlotReader interface {
	BusySlots(ctx context.Context, bikeID int64, from, to time.Time) ([]repository.BusySlot, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}
