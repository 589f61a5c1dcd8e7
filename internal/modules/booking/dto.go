package booking

import "time"

type CreateBookingRequest struct {
	BikeID         int64     `json:"bikeId" binding:"required,gt=0"`
	StartTime      time.Time `json:"startTime" binding:"required"`
	EndTime        time.Time `json:"endTime" binding:"required"`
	TotalAmount    float64   `json:"totalAmount" binding:"gte=0"`
	DiscountAmount float64   `json:"discountAmount" binding:"gte=0"`
	Days           int       `json:"days" binding:"gte=0"`
	PickupTime     string    `json:"pickupTime" binding:"max=32"`
	ReturnTime     string    `json:"returnTime" binding:"max=32"`
}

type CheckoutResult struct {
	BookingID int64  `json:"bookingId"`
	URL       string `json:"url"`
}

// StatusEvent is pushed to the renter's websocket connections.
type StatusEvent struct {
	Type          string `json:"type"`
	BookingID     int64  `json:"booking_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

const EventBookingStatus = "booking.status"
