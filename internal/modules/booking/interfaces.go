package booking

import (
	"context"
	"time"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

type BookingRepository interface {
	CreateIfAvailable(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetWithRelations(ctx context.Context, id int64) (*domain.Booking, error)
	SetSessionID(ctx context.Context, id int64, sessionID string) error
	MarkConfirmed(ctx context.Context, id int64, paymentID string) (bool, error)
	MarkCancelled(ctx context.Context, id int64) (bool, error)
	ExpireAbandoned(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, params querybuilder.QueryRequest, conds []querybuilder.Condition, joins []querybuilder.NestedJoin) (*querybuilder.PagedResult[domain.Booking], error)
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// SlotInvalidator drops cached availability of a bike.
type SlotInvalidator interface {
	InvalidateBusySlots(ctx context.Context, bikeID int64)
}

type Notifier interface {
	SendToUser(userID int64, message any) bool
}
