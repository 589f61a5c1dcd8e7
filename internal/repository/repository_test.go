package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bikerental/internal/database"
	"bikerental/internal/domain"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role domain.UserRole) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "x", Role: role, Name: email}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedBike(t *testing.T, db *gorm.DB, ownerID int64, name string, status domain.BikeStatus) *domain.Bike {
	t.Helper()
	b := &domain.Bike{
		OwnerID:     ownerID,
		Name:        name,
		Brand:       "Trek",
		Type:        domain.BikeRoad,
		Location:    "Berlin",
		PricePerDay: 25,
		Status:      status,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func seedBooking(t *testing.T, db *gorm.DB, userID, bikeID int64, start, end time.Time, status domain.BookingStatus, pay domain.PaymentStatus, expiresAt *time.Time) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		UserID:        userID,
		BikeID:        bikeID,
		StartTime:     start,
		EndTime:       end,
		TotalAmount:   100,
		Status:        status,
		PaymentStatus: pay,
		ExpiresAt:     expiresAt,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(fmt.Sprintf("bad time %q", s))
	}
	return t.UTC()
}

var ctx = context.Background()
