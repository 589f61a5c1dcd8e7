package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type StripeGateway struct {
	api *client.API
	cfg StripeConfig
	log *logrus.Logger
}

func NewStripeGateway(cfg StripeConfig, log *logrus.Logger) *StripeGateway {
	g := &StripeGateway{cfg: cfg, log: log}
	if cfg.SecretKey != "" {
		g.api = client.New(cfg.SecretKey, nil)
	}
	return g
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}

	ref := strconv.FormatInt(req.BookingID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ClientReferenceID: stripe.String(ref),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataBookingID: ref},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetadataBookingID, ref)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"booking_id": req.BookingID,
		"session_id": sess.ID,
		"amount":     req.AmountMinor,
	}).Info("checkout session created")

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}
	if event.Data == nil {
		return nil, ErrMissingBookingID
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	out.SessionID = sess.ID
	out.PaymentID = sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		out.PaymentID = sess.PaymentIntent.ID
	}

	ref := sess.Metadata[MetadataBookingID]
	if ref == "" {
		ref = sess.ClientReferenceID
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrMissingBookingID
	}
	out.BookingID = id
	return out, nil
}
