package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

func newPending(userID, bikeID int64, start, end time.Time) *domain.Booking {
	exp := time.Now().UTC().Add(15 * time.Minute)
	return &domain.Booking{
		UserID:        userID,
		BikeID:        bikeID,
		StartTime:     start,
		EndTime:       end,
		TotalAmount:   100,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentPending,
		ExpiresAt:     &exp,
	}
}

func TestCreateIfAvailable_RejectsOverlapWithConfirmed(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	renter := seedUser(t, db, "renter@example.com", domain.RoleRenter)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	seedBooking(t, db, renter.ID, bike.ID,
		utc("2025-06-01T10:00:00Z"), utc("2025-06-03T10:00:00Z"),
		domain.BookingConfirmed, domain.PaymentPaid, nil)

	err := repo.CreateIfAvailable(ctx, newPending(renter.ID, bike.ID, utc("2025-06-02T10:00:00Z"), utc("2025-06-04T10:00:00Z")))
	assert.ErrorIs(t, err, ErrBookingOverlap)

	var count int64
	require.NoError(t, db.Model(&domain.Booking{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateIfAvailable_TouchingIntervalIsAllowed(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	renter := seedUser(t, db, "renter@example.com", domain.RoleRenter)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	seedBooking(t, db, renter.ID, bike.ID,
		utc("2025-06-01T10:00:00Z"), utc("2025-06-03T10:00:00Z"),
		domain.BookingConfirmed, domain.PaymentPaid, nil)

	b := newPending(renter.ID, bike.ID, utc("2025-06-03T10:00:00Z"), utc("2025-06-04T10:00:00Z"))
	require.NoError(t, repo.CreateIfAvailable(ctx, b))
	assert.NotZero(t, b.ID)
}

func TestCreateIfAvailable_NonBlockingStatusesDoNotConflict(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	renter := seedUser(t, db, "renter@example.com", domain.RoleRenter)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	start, end := utc("2025-06-01T10:00:00Z"), utc("2025-06-03T10:00:00Z")
	seedBooking(t, db, renter.ID, bike.ID, start, end, domain.BookingPending, domain.PaymentPending, nil)
	seedBooking(t, db, renter.ID, bike.ID, start, end, domain.BookingCancelled, domain.PaymentFailed, nil)
	seedBooking(t, db, renter.ID, bike.ID, start, end, domain.BookingExpired, domain.PaymentExpired, nil)

	assert.NoError(t, repo.CreateIfAvailable(ctx, newPending(renter.ID, bike.ID, start, end)))
}

func TestCreateIfAvailable_BikeState(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	bike := seedBike(t, db, owner.ID, "Old", domain.BikeMaintenance)

	start, end := utc("2025-06-01T10:00:00Z"), utc("2025-06-02T10:00:00Z")
	err := repo.CreateIfAvailable(ctx, newPending(owner.ID, bike.ID, start, end))
	assert.ErrorIs(t, err, ErrBikeNotAvailable)

	err = repo.CreateIfAvailable(ctx, newPending(owner.ID, 9999, start, end))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMarkConfirmed_IsConditional(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)
	exp := time.Now().UTC().Add(time.Minute)
	b := seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-01T10:00:00Z"), utc("2025-06-02T10:00:00Z"),
		domain.BookingPending, domain.PaymentPending, &exp)

	ok, err := repo.MarkConfirmed(ctx, b.ID, "pi_123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConfirmed(ctx, b.ID, "pi_other")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "pi_123", got.StripePaymentID)
	assert.Nil(t, got.ExpiresAt)

	ok, err = repo.MarkCancelled(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkConfirmed_RejectsOverlapWithConfirmed(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	renter := seedUser(t, db, "renter@example.com", domain.RoleRenter)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)
	exp := time.Now().UTC().Add(time.Minute)

	first := seedBooking(t, db, renter.ID, bike.ID, utc("2025-06-01T10:00:00Z"), utc("2025-06-03T10:00:00Z"),
		domain.BookingPending, domain.PaymentPending, &exp)
	second := seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-02T10:00:00Z"), utc("2025-06-04T10:00:00Z"),
		domain.BookingPending, domain.PaymentPending, &exp)
	touching := seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-03T10:00:00Z"), utc("2025-06-05T10:00:00Z"),
		domain.BookingPending, domain.PaymentPending, &exp)

	ok, err := repo.MarkConfirmed(ctx, first.ID, "pi_first")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConfirmed(ctx, second.ID, "pi_second")
	assert.ErrorIs(t, err, ErrBookingOverlap)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	assert.Empty(t, got.StripePaymentID)

	ok, err = repo.MarkConfirmed(ctx, touching.ID, "pi_touching")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkConfirmed_UnknownBooking(t *testing.T) {
	repo := NewBookingRepository(testDB(t))

	ok, err := repo.MarkConfirmed(ctx, 404, "pi_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireAbandoned(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(10 * time.Minute)
	start, end := utc("2025-06-01T10:00:00Z"), utc("2025-06-02T10:00:00Z")

	stale := seedBooking(t, db, owner.ID, bike.ID, start, end, domain.BookingPending, domain.PaymentPending, &past)
	fresh := seedBooking(t, db, owner.ID, bike.ID, start, end, domain.BookingPending, domain.PaymentPending, &future)
	paid := seedBooking(t, db, owner.ID, bike.ID, start, end, domain.BookingConfirmed, domain.PaymentPaid, &past)

	n, err := repo.ExpireAbandoned(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ExpireAbandoned(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, _ := repo.GetByID(ctx, stale.ID)
	assert.Equal(t, domain.BookingExpired, got.Status)
	assert.Equal(t, domain.PaymentExpired, got.PaymentStatus)
	got, _ = repo.GetByID(ctx, fresh.ID)
	assert.Equal(t, domain.BookingPending, got.Status)
	got, _ = repo.GetByID(ctx, paid.ID)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
}

func TestBusySlots(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-05T10:00:00Z"), utc("2025-06-06T10:00:00Z"),
		domain.BookingActive, domain.PaymentPaid, nil)
	seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-01T10:00:00Z"), utc("2025-06-03T10:00:00Z"),
		domain.BookingConfirmed, domain.PaymentPaid, nil)
	seedBooking(t, db, owner.ID, bike.ID, utc("2025-06-02T10:00:00Z"), utc("2025-06-03T10:00:00Z"),
		domain.BookingPending, domain.PaymentPending, nil)
	seedBooking(t, db, owner.ID, bike.ID, utc("2025-07-01T10:00:00Z"), utc("2025-07-03T10:00:00Z"),
		domain.BookingConfirmed, domain.PaymentPaid, nil)

	slots, err := repo.BusySlots(ctx, bike.ID, utc("2025-06-01T00:00:00Z"), utc("2025-06-30T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(utc("2025-06-01T10:00:00Z")))
	assert.True(t, slots[1].Start.Equal(utc("2025-06-05T10:00:00Z")))
}

func TestBookingList_ScopedToUserWithBike(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepository(db)
	owner := seedUser(t, db, "owner@example.com", domain.RoleOwner)
	renter := seedUser(t, db, "renter@example.com", domain.RoleRenter)
	bike := seedBike(t, db, owner.ID, "Domane", domain.BikeAvailable)

	start, end := utc("2025-06-01T10:00:00Z"), utc("2025-06-02T10:00:00Z")
	seedBooking(t, db, renter.ID, bike.ID, start, end, domain.BookingConfirmed, domain.PaymentPaid, nil)
	seedBooking(t, db, renter.ID, bike.ID, start, end, domain.BookingPending, domain.PaymentPending, nil)
	seedBooking(t, db, owner.ID, bike.ID, start, end, domain.BookingPending, domain.PaymentPending, nil)

	page := 1
	params := querybuilder.QueryRequest{
		Page:    &page,
		Filters: []querybuilder.Filter{{Field: "status", Operator: querybuilder.OpEq, Value: "confirmed"}},
	}
	res, err := repo.List(ctx, params, []querybuilder.Condition{{SQL: "bookings.user_id = ?", Args: []any{renter.ID}}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, int64(1), *res.Total)
	require.NotNil(t, res.Results[0].Bike)
	assert.Equal(t, "Domane", res.Results[0].Bike.Name)
}
