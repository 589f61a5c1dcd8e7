package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bikerental/internal/domain"
	"bikerental/internal/modules/payment"
	"bikerental/internal/pkg/cache"
	"bikerental/internal/pkg/money"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/repository"
)

const (
	DefaultPaymentWindow = 15 * time.Minute
	// webhookEventTTL outlives the provider's retry schedule.
	webhookEventTTL = 72 * time.Hour
)

type Config struct {
	PaymentWindow time.Duration
	Currency      string
}

// Deps are the collaborators of the booking service. Events, Slots and
// Notifier are optional.
type Deps struct {
	Bookings BookingRepository
	Users    UserReader
	Gateway  payment.Gateway
	Events   cache.Cache
	Slots    SlotInvalidator
	Notifier Notifier
	Invoices *InvoiceRenderer
	Log      *logrus.Logger
}

type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = DefaultPaymentWindow
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

// CreateBooking reserves the bike as (pending, pending) and opens a payment
// session for it. The returned URL is where the renter pays.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest, requesterID int64) (*CheckoutResult, error) {
	if requesterID <= 0 {
		return nil, ErrUnauthorized
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if !start.Before(end) || req.TotalAmount < 0 || req.DiscountAmount < 0 || req.Days < 0 {
		return nil, ErrValidation
	}
	cents, err := money.PositiveMinorUnits(req.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.PaymentWindow)
	b := &domain.Booking{
		UserID:         requesterID,
		BikeID:         req.BikeID,
		StartTime:      start,
		EndTime:        end,
		TotalAmount:    req.TotalAmount,
		DiscountAmount: req.DiscountAmount,
		Days:           req.Days,
		PickupTime:     req.PickupTime,
		ReturnTime:     req.ReturnTime,
		Status:         domain.BookingPending,
		PaymentStatus:  domain.PaymentPending,
		ExpiresAt:      &expiresAt,
	}
	if err := s.Bookings.CreateIfAvailable(ctx, b); err != nil {
		return nil, mapCreateError(err)
	}

	log := s.Log.WithFields(logrus.Fields{"booking_id": b.ID, "bike_id": b.BikeID, "user_id": requesterID})

	checkout := payment.CheckoutRequest{
		BookingID:   b.ID,
		AmountMinor: cents,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("Bike rental #%d", b.ID),
	}
	if s.Users != nil {
		if u, err := s.Users.GetByID(ctx, requesterID); err == nil {
			checkout.CustomerEmail = u.Email
		}
	}

	sess, err := s.Gateway.CreateCheckoutSession(ctx, checkout)
	if err != nil {
		if _, cerr := s.Bookings.MarkCancelled(ctx, b.ID); cerr != nil {
			log.WithError(cerr).Error("failed to release booking after checkout failure")
		}
		log.WithError(err).Error("checkout session creation failed")
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}
	if err := s.Bookings.SetSessionID(ctx, b.ID, sess.ID); err != nil {
		log.WithError(err).Warn("failed to store checkout session id")
	}

	log.WithField("expires_at", expiresAt).Info("booking created")
	return &CheckoutResult{BookingID: b.ID, URL: sess.URL}, nil
}

// HandlePaymentWebhook applies a verified provider event. Replays are no-ops.
func (s *Service) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return fmt.Errorf("%w: %v", ErrWebhookVerification, err)
		}
		if errors.Is(err, payment.ErrMissingBookingID) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}

	log := s.Log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type, "booking_id": ev.BookingID})
	if ev.Type != payment.EventCheckoutCompleted && ev.Type != payment.EventCheckoutExpired {
		log.Debug("webhook event ignored")
		return nil
	}

	key := cache.WebhookEventKey(ev.ID)
	if s.Events != nil && ev.ID != "" {
		seen, err := s.Events.Exists(ctx, key)
		if err != nil {
			log.WithError(err).Warn("webhook event lookup failed")
		} else if seen {
			log.Info("webhook event already processed")
			return nil
		}
	}

	switch ev.Type {
	case payment.EventCheckoutCompleted:
		_, err = s.confirm(ctx, ev.BookingID, ev.PaymentID)
		if errors.Is(err, ErrConflict) {
			// The booking was released by confirm; the event itself is handled.
			err = nil
		}
	case payment.EventCheckoutExpired:
		err = s.cancel(ctx, ev.BookingID)
	}
	if errors.Is(err, ErrNotFound) {
		// Unknown bookings are acknowledged so the provider stops retrying.
		log.Warn("webhook references unknown booking")
		err = nil
	}
	if err != nil {
		return err
	}

	if s.Events != nil && ev.ID != "" {
		if err := s.Events.Set(ctx, key, true, webhookEventTTL); err != nil {
			log.WithError(err).Warn("failed to record webhook event")
		}
	}
	return nil
}

// ConfirmBooking is the manual counterpart of the completed-checkout webhook.
func (s *Service) ConfirmBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	b, err := s.confirm(ctx, bookingID, "")
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}
	return b, nil
}

// ExpireAbandonedBookings moves unpaid bookings past their payment window to
// (expired, expired) and returns how many were moved.
func (s *Service) ExpireAbandonedBookings(ctx context.Context) (int64, error) {
	n, err := s.Bookings.ExpireAbandoned(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire bookings: %w", err)
	}
	if n > 0 {
		s.Log.WithField("count", n).Info("expired abandoned bookings")
	}
	return n, nil
}

// GetBooking returns the booking to its renter or to an admin.
func (s *Service) GetBooking(ctx context.Context, bookingID, requesterID int64, role string) (*domain.Booking, error) {
	b, err := s.Bookings.GetWithRelations(ctx, bookingID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if role != string(domain.RoleAdmin) && b.UserID != requesterID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) ListMy(ctx context.Context, userID int64, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.Booking], error) {
	conds := []querybuilder.Condition{{SQL: "bookings.user_id = ?", Args: []any{userID}}}
	return s.Bookings.List(ctx, params, conds, nil)
}

func (s *Service) ListAll(ctx context.Context, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.Booking], error) {
	return s.Bookings.List(ctx, params, nil, []querybuilder.NestedJoin{repository.BookingUserJoin})
}

// DownloadInvoice renders the invoice of a paid booking for its renter.
func (s *Service) DownloadInvoice(ctx context.Context, bookingID, requesterID int64) ([]byte, string, error) {
	b, err := s.Bookings.GetWithRelations(ctx, bookingID)
	if err != nil {
		return nil, "", mapNotFound(err)
	}
	if b.UserID != requesterID {
		return nil, "", ErrForbidden
	}
	if !b.Invoiceable() {
		return nil, "", ErrInvoiceUnavailable
	}
	pdf, err := s.Invoices.Render(b)
	if err != nil {
		return nil, "", err
	}
	return pdf, InvoiceFilename(b.ID), nil
}

func (s *Service) confirm(ctx context.Context, bookingID int64, paymentID string) (*domain.Booking, error) {
	changed, err := s.Bookings.MarkConfirmed(ctx, bookingID, paymentID)
	if errors.Is(err, repository.ErrBookingOverlap) {
		return nil, s.releaseTakenSlot(ctx, bookingID, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	log := s.Log.WithFields(logrus.Fields{"booking_id": b.ID, "status": b.Status})
	if !changed {
		log.Info("booking confirmation skipped")
		return b, nil
	}
	log.Info("booking confirmed")
	if s.Slots != nil {
		s.Slots.InvalidateBusySlots(ctx, b.BikeID)
	}
	s.publish(b)
	return b, nil
}

func (s *Service) cancel(ctx context.Context, bookingID int64) error {
	changed, err := s.Bookings.MarkCancelled(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return mapNotFound(err)
	}
	if changed {
		s.Log.WithField("booking_id", b.ID).Info("booking cancelled after checkout expiry")
		s.publish(b)
	}
	return nil
}

// releaseTakenSlot cancels a paid booking whose interval was confirmed for
// another booking first. The charge is left for an operator to refund.
func (s *Service) releaseTakenSlot(ctx context.Context, bookingID int64, paymentID string) error {
	changed, err := s.Bookings.MarkCancelled(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return mapNotFound(err)
	}
	if changed {
		s.Log.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"bike_id":    b.BikeID,
			"payment_id": paymentID,
		}).Warn("paid booking overlaps a confirmed booking, refund required")
		s.publish(b)
	}
	return ErrConflict
}

func (s *Service) publish(b *domain.Booking) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.SendToUser(b.UserID, StatusEvent{
		Type:          EventBookingStatus,
		BookingID:     b.ID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
	})
}

func mapCreateError(err error) error {
	switch {
	case errors.Is(err, repository.ErrBookingOverlap):
		return ErrConflict
	case errors.Is(err, repository.ErrBikeNotAvailable), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotAvailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23P01") {
		return ErrConflict
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
