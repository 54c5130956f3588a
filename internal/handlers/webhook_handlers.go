package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"

	"github.com/wajihaissa/fahamni/internal/services"
)

const maxWebhookBodyBytes = 1 << 16

// WebhookHandler receives the payment provider callbacks that complete or
// fail checkout attempts.
type WebhookHandler struct {
	payments *services.PaymentService
	stripe   *services.StripeService
	konnect  *services.KonnectService
}

func NewWebhookHandler(payments *services.PaymentService, stripeSvc *services.StripeService, konnectSvc *services.KonnectService) *WebhookHandler {
	return &WebhookHandler{payments: payments, stripe: stripeSvc, konnect: konnectSvc}
}

// HandleStripe verifies the Stripe signature and applies the event
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	event, err := h.stripe.VerifyWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("Stripe webhook signature verification failed: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
		}
		paymentIntentID := ""
		if session.PaymentIntent != nil {
			paymentIntentID = session.PaymentIntent.ID
		}
		if err := h.payments.HandleCompletedCheckout(c.Request().Context(), session.ID, paymentIntentID, time.Now()); err != nil {
			return err
		}

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
		}
		if err := h.payments.HandleFailedCheckout(c.Request().Context(), session.ID, "checkout session expired", time.Now()); err != nil {
			return err
		}

	default:
		log.Printf("Ignoring stripe event type %s", event.Type)
	}

	return c.NoContent(http.StatusOK)
}

// HandleKonnect applies a Konnect callback. The webhook only carries the
// payment reference, so the payment is fetched back from Konnect before
// the transaction is settled.
func (h *WebhookHandler) HandleKonnect(c echo.Context) error {
	paymentRef := c.QueryParam("payment_ref")
	if paymentRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payment_ref is required")
	}

	completed, err := h.konnect.IsPaymentCompleted(c.Request().Context(), paymentRef)
	if err != nil {
		return err
	}

	if completed {
		if err := h.payments.HandleCompletedCheckout(c.Request().Context(), paymentRef, "", time.Now()); err != nil {
			return err
		}
	} else {
		if err := h.payments.HandleFailedCheckout(c.Request().Context(), paymentRef, "konnect payment not completed", time.Now()); err != nil {
			return err
		}
	}

	return c.NoContent(http.StatusOK)
}
