package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wajihaissa/fahamni/internal/models"
)

// MockGateway stands in for a real provider in local development. Every
// checkout immediately redirects to the success URL; the webhook has to be
// simulated by hand.
type MockGateway struct {
	pricing    *StripeService
	successURL string
}

func NewMockGateway(pricing *StripeService, successURL string) *MockGateway {
	return &MockGateway{pricing: pricing, successURL: successURL}
}

func (g *MockGateway) ProviderName() string {
	return "mock"
}

func (g *MockGateway) Currency() string {
	return "tnd"
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, r *models.Reservation) (*CheckoutSession, error) {
	ref := "mock_cs_" + uuid.NewString()
	return &CheckoutSession{
		ExternalRef: ref,
		RedirectURL: fmt.Sprintf("%s?session_id=%s", g.successURL, ref),
		AmountCents: g.pricing.ComputeReservationAmountCents(r),
		Currency:    "tnd",
	}, nil
}
