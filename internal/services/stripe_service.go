package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/wajihaissa/fahamni/internal/models"
)

// StripeService drives Stripe Checkout sessions and webhook verification.
type StripeService struct {
	secretKey         string
	webhookSecret     string
	currency          string
	pricePerHourCents int64
	successURL        string
	cancelURL         string
}

func NewStripeService() *StripeService {
	s := &StripeService{
		secretKey:         strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		webhookSecret:     strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		currency:          normalizeCurrencyCode(os.Getenv("PAYMENT_CURRENCY")),
		pricePerHourCents: 3000,
		successURL:        os.Getenv("CHECKOUT_SUCCESS_URL"),
		cancelURL:         os.Getenv("CHECKOUT_CANCEL_URL"),
	}
	if raw := os.Getenv("PRICE_PER_HOUR_CENTS"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			s.pricePerHourCents = v
		}
	}
	stripe.Key = s.secretKey
	return s
}

// IsConfigured reports whether a usable secret key is present.
func (s *StripeService) IsConfigured() bool {
	return strings.HasPrefix(s.secretKey, "sk_")
}

func (s *StripeService) ProviderName() string {
	return "stripe"
}

// Currency returns the configured charge currency (lowercase ISO code).
func (s *StripeService) Currency() string {
	return s.currency
}

// WebhookSecret exposes the endpoint signing secret for the webhook handler.
func (s *StripeService) WebhookSecret() string {
	return s.webhookSecret
}

// CreateCheckoutSession opens a Stripe Checkout session for the reservation.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, r *models.Reservation) (*CheckoutSession, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is not configured")
	}

	amountCents := s.ComputeReservationAmountCents(r)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionIDPlaceholder(s.successURL)),
		CancelURL:         stripe.String(s.cancelURL),
		CustomerEmail:     stripe.String(r.Participant.Email),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(r.ID), 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Reservation seance: %s", seanceLabel(r))),
						Description: stripe.String(fmt.Sprintf(
							"Seance du %s avec %s (%d min)",
							r.Seance.StartAt.Format("02/01/2006 15:04"),
							tuteurLabel(r),
							r.Seance.DurationMin,
						)),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", strconv.FormatUint(uint64(r.ID), 10))
	params.AddMetadata("seance_id", strconv.FormatUint(uint64(r.SeanceID), 10))
	params.AddMetadata("matiere", seanceLabel(r))

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout: %w", err)
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, fmt.Errorf("stripe checkout: session id or url missing")
	}

	return &CheckoutSession{
		ExternalRef: sess.ID,
		RedirectURL: sess.URL,
		AmountCents: amountCents,
		Currency:    s.currency,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
func (s *StripeService) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
}

// ComputeReservationAmountCents prices a reservation from the seance
// duration at the configured hourly rate, with a 50 cent floor.
func (s *StripeService) ComputeReservationAmountCents(r *models.Reservation) int64 {
	duration := r.Seance.DurationMin
	if duration <= 0 {
		duration = 60
	}
	if duration < 15 {
		duration = 15
	}
	amount := int64(math.Ceil(float64(duration) / 60 * float64(s.pricePerHourCents)))
	if amount < 50 {
		amount = 50
	}
	return amount
}

func normalizeCurrencyCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if len(code) != 3 {
		return "tnd"
	}
	return code
}

func withSessionIDPlaceholder(successURL string) string {
	if strings.Contains(successURL, "?") {
		return successURL + "&session_id={CHECKOUT_SESSION_ID}"
	}
	return successURL + "?session_id={CHECKOUT_SESSION_ID}"
}

func seanceLabel(r *models.Reservation) string {
	if r.Seance.Matiere != "" {
		return r.Seance.Matiere
	}
	return "Seance"
}

func tuteurLabel(r *models.Reservation) string {
	if r.Seance.Tuteur.FullName != "" {
		return r.Seance.Tuteur.FullName
	}
	return "tuteur"
}
