package booking

import "errors"

var (
	ErrNotFound            = errors.New("booking not found")
	ErrConflict            = errors.New("this bike is already booked for the selected time period")
	ErrNotAvailable        = errors.New("bike is not available")
	ErrValidation          = errors.New("validation error")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrWebhookVerification = errors.New("webhook verification failed")
	ErrInvoiceUnavailable  = errors.New("invoice is available for confirmed bookings only")
	ErrInvalidState        = errors.New("booking is not awaiting payment")
)
