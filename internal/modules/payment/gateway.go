package payment

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingBookingID = errors.New("webhook event carries no booking id")
	ErrNotConfigured    = errors.New("payment gateway is not configured")
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"

	// MetadataBookingID correlates provider sessions with bookings.
	MetadataBookingID = "booking_id"
)

type CheckoutRequest struct {
	BookingID     int64
	AmountMinor   int64
	Currency      string
	Description   string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified provider event reduced to what the booking
// lifecycle needs. BookingID is zero for event types that carry no session.
type WebhookEvent struct {
	ID        string
	Type      string
	BookingID int64
	SessionID string
	PaymentID string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseWebhook verifies the signature against the raw body before decoding.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
