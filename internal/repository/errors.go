package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = gorm.ErrRecordNotFound
	ErrBikeNotAvailable = errors.New("bike not available")
	ErrBookingOverlap   = errors.New("booking overlaps an existing reservation")
)
