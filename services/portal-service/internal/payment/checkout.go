// Package payment starts hosted Stripe Checkout sessions for booked appointments.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

var (
	ErrNotPayable = errors.New("appointment cannot be paid online")
	ErrNoAmount   = errors.New("appointment has no fee to collect")
)

type Config struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   model.Currency
	// APIURL overrides the Stripe endpoint, e.g. a local stripe-mock.
	APIURL     string
	HTTPClient *http.Client
}

// Session is what the browser needs to continue on Stripe's hosted page.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

type Checkout struct {
	sessions   checkoutsession.Client
	currency   model.Currency
	successURL string
	cancelURL  string
}

func New(cfg Config) (*Checkout, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("checkout success and cancel URLs are required")
	}
	if cfg.Currency == "" {
		cfg.Currency = model.DefaultCurrency
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	return &Checkout{
		sessions: checkoutsession.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}, nil
}

// Start opens a one-off payment session for the appointment fee. Retries for the
// same appointment reuse the Stripe idempotency key.
func (c *Checkout) Start(ctx context.Context, appt model.Appointment, email string) (Session, error) {
	const op = "checkout"
	if appt.Cancelled || appt.IsCompleted || appt.Payment {
		return Session{}, api.NewError(op, api.ErrValidation, 0, "Appointment is "+appt.Status(), ErrNotPayable)
	}
	amount := MinorUnits(appt.Amount, c.currency)
	if amount <= 0 {
		return Session{}, api.NewError(op, api.ErrValidation, 0, "Nothing to pay", ErrNoAmount)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(appt.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(c.currency)),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Appointment with " + appt.Doctor.Name),
						Description: stripe.String(appt.SlotDate + " " + appt.SlotTime),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"appointment_id": appt.ID,
			"doctor_id":      appt.DoctorID,
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("appointment-" + appt.ID)

	sess, err := c.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return Session{}, api.NewError(op, api.ErrAPI, stripeErr.HTTPStatusCode, stripeErr.Msg, err)
		}
		return Session{}, api.NewError(op, api.ErrNetwork, 0, "", fmt.Errorf("stripe: %w", err))
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// zeroDecimal lists the supported currencies Stripe charges in whole units.
var zeroDecimal = map[model.Currency]bool{
	stripe.CurrencyJPY: true,
	stripe.CurrencyKRW: true,
	stripe.CurrencyVND: true,
}

// MinorUnits converts a fee into the smallest unit Stripe expects for c.
func MinorUnits(amount float64, c model.Currency) int64 {
	if zeroDecimal[c] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}
