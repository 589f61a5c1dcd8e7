package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// BlockingStatuses are the statuses whose interval reserves the bike.
var BlockingStatuses = []BookingStatus{BookingConfirmed, BookingActive}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentExpired  PaymentStatus = "expired"
)

// Booking reserves a bike for the half-open interval [StartTime, EndTime).
type Booking struct {
	ID              int64         `json:"id" gorm:"primaryKey"`
	UserID          int64         `json:"user_id" gorm:"index;not null"`
	BikeID          int64         `json:"bike_id" gorm:"index:idx_bookings_bike_window,priority:1;not null"`
	StartTime       time.Time     `json:"start_time" gorm:"index:idx_bookings_bike_window,priority:2;not null"`
	EndTime         time.Time     `json:"end_time" gorm:"not null"`
	TotalAmount     float64       `json:"total_amount" gorm:"not null"`
	DiscountAmount  float64       `json:"discount_amount" gorm:"not null;default:0"`
	Days            int           `json:"days"`
	PickupTime      string        `json:"pickup_time,omitempty"`
	ReturnTime      string        `json:"return_time,omitempty"`
	Status          BookingStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null"`
	StripeSessionID string        `json:"stripe_session_id,omitempty"`
	StripePaymentID string        `json:"stripe_payment_id,omitempty"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty" gorm:"index"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Bike *Bike `json:"bike,omitempty" gorm:"foreignKey:BikeID"`
}

func (b Booking) CursorID() int64 { return b.ID }

// Invoiceable reports whether an invoice can be issued for the booking.
func (b *Booking) Invoiceable() bool {
	switch b.Status {
	case BookingConfirmed, BookingActive, BookingCompleted:
		return true
	}
	return false
}

// Subtotal is the pre-discount price. TotalAmount is what the renter pays.
func (b *Booking) Subtotal() float64 {
	return b.TotalAmount + b.DiscountAmount
}
