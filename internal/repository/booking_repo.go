package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

type BusySlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

var bookingListConfig = querybuilder.Config{
	Alias:             "bookings",
	DefaultSortBy:     "created_at",
	AllowedSortFields: []string{"created_at", "start_time", "end_time", "total_amount"},
	FilterableFields: []string{
		"status", "payment_status", "bike_id", "user_id",
		"start_time", "end_time", "created_at", "total_amount",
	},
	SelectableFields: []string{
		"user_id", "bike_id", "start_time", "end_time", "total_amount", "discount_amount",
		"days", "status", "payment_status", "expires_at", "created_at",
	},
	NestedJoins: []querybuilder.NestedJoin{
		{
			Path:    "Bike",
			Type:    querybuilder.LeftJoin,
			Columns: []string{"id", "name", "brand", "model", "location", "price_per_day", "image_url"},
		},
	},
}

// BookingUserJoin adds the renter to admin listings.
var BookingUserJoin = querybuilder.NestedJoin{
	Path:    "User",
	Type:    querybuilder.LeftJoin,
	Columns: []string{"id", "name", "email"},
}

type BookingRepository struct {
	db   *gorm.DB
	list *querybuilder.Builder[domain.Booking]
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{
		db:   db,
		list: querybuilder.New[domain.Booking](db, bookingListConfig),
	}
}

// CreateIfAvailable locks the bike row, re-checks availability and overlap
// against blocking bookings, and inserts b in the same transaction.
func (r *BookingRepository) CreateIfAvailable(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bike, err := lockBike(tx, b.BikeID)
		if err != nil {
			return err
		}
		if !bike.IsAvailable() {
			return ErrBikeNotAvailable
		}

		overlapping, err := countBlocking(tx, b)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrBookingOverlap
		}

		return tx.Create(b).Error
	})
}

func lockBike(tx *gorm.DB, id int64) (*domain.Bike, error) {
	var bike domain.Bike
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&bike).Error
	if err != nil {
		return nil, err
	}
	return &bike, nil
}

// countBlocking counts the other confirmed or active bookings of b's bike
// that intersect b's interval.
func countBlocking(tx *gorm.DB, b *domain.Booking) (int64, error) {
	var n int64
	q := tx.Model(&domain.Booking{}).
		Where("bike_id = ?", b.BikeID).
		Where("status IN ?", domain.BlockingStatuses).
		Where("start_time < ? AND end_time > ?", b.EndTime, b.StartTime)
	if b.ID != 0 {
		q = q.Where("id <> ?", b.ID)
	}
	err := q.Count(&n).Error
	return n, err
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetWithRelations loads the booking with its renter and bike.
func (r *BookingRepository) GetWithRelations(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Addresses", "is_primary = ?", true).
		Preload("Bike").
		First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) SetSessionID(ctx context.Context, id int64, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Update("stripe_session_id", sessionID).Error
}

// MarkConfirmed moves a (pending, pending) booking to (confirmed, paid).
// It reports false when the booking is missing or not in that state, and
// ErrBookingOverlap when a confirmed or active booking of the same bike
// already holds an intersecting interval.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, id int64, paymentID string) (bool, error) {
	updates := map[string]any{
		"status":         domain.BookingConfirmed,
		"payment_status": domain.PaymentPaid,
		"expires_at":     nil,
	}
	if paymentID != "" {
		updates["stripe_payment_id"] = paymentID
	}

	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bikeIDs []int64
		if err := tx.Model(&domain.Booking{}).Where("id = ?", id).Pluck("bike_id", &bikeIDs).Error; err != nil {
			return err
		}
		if len(bikeIDs) == 0 {
			return nil
		}
		if _, err := lockBike(tx, bikeIDs[0]); err != nil {
			return err
		}

		var b domain.Booking
		if err := tx.First(&b, id).Error; err != nil {
			return err
		}
		if b.Status != domain.BookingPending || b.PaymentStatus != domain.PaymentPending {
			return nil
		}
		overlapping, err := countBlocking(tx, &b)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrBookingOverlap
		}

		changed, err = transition(tx, id, updates)
		return err
	})
	return changed, err
}

// MarkCancelled moves a (pending, pending) booking to (cancelled, failed).
func (r *BookingRepository) MarkCancelled(ctx context.Context, id int64) (bool, error) {
	return transition(r.db.WithContext(ctx), id, map[string]any{
		"status":         domain.BookingCancelled,
		"payment_status": domain.PaymentFailed,
		"expires_at":     nil,
	})
}

func transition(tx *gorm.DB, id int64, updates map[string]any) (bool, error) {
	res := tx.Model(&domain.Booking{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, domain.BookingPending, domain.PaymentPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireAbandoned expires every unpaid booking whose payment window closed
// before now.
func (r *BookingRepository) ExpireAbandoned(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("status = ? AND payment_status = ?", domain.BookingPending, domain.PaymentPending).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]any{
			"status":         domain.BookingExpired,
			"payment_status": domain.PaymentExpired,
		})
	return res.RowsAffected, res.Error
}

// Overlaps reports whether the slot intersects [start, end). Touching
// intervals do not overlap.
func (s BusySlot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && s.End.After(start)
}

// BusySlots returns the blocking intervals of a bike that intersect [from, to).
func (r *BookingRepository) BusySlots(ctx context.Context, bikeID int64, from, to time.Time) ([]BusySlot, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Select("start_time", "end_time").
		Where("bike_id = ?", bikeID).
		Where("status IN ?", domain.BlockingStatuses).
		Where("start_time < ? AND end_time > ?", to, from).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]BusySlot, 0, len(rows))
	for _, b := range rows {
		out = append(out, BusySlot{Start: b.StartTime, End: b.EndTime})
	}
	return out, nil
}

func (r *BookingRepository) List(
	ctx context.Context,
	params querybuilder.QueryRequest,
	conds []querybuilder.Condition,
	joins []querybuilder.NestedJoin,
) (*querybuilder.PagedResult[domain.Booking], error) {
	return r.list.BuildAndExecute(ctx, params, conds, nil, joins)
}
