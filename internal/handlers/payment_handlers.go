package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	store    *repository.ReservationRepository
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, store *repository.ReservationRepository) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, store: store}
}

// StartCheckout opens (or resumes) a checkout for the reservation and
// returns the provider URL the student should be sent to.
func (h *PaymentHandler) StartCheckout(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	reservation, err := h.store.FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if reservation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "reservation not found")
	}

	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}
	if reservation.ParticipantID != user.ID {
		return echo.NewHTTPError(http.StatusForbidden, "only the participant can pay for a reservation")
	}

	checkoutURL, err := h.payments.CreateCheckoutForReservation(c.Request().Context(), reservation)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"checkout_url": checkoutURL})
}

// PaymentStatus reports the latest transaction for the reservation
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	reservation, err := h.store.FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if reservation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "reservation not found")
	}

	latest, err := h.payments.Latest(c.Request().Context(), reservation)
	if err != nil {
		return err
	}
	if latest == nil {
		return c.JSON(http.StatusOK, map[string]any{"status": "none"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":       latest.Status,
		"amount_cents": latest.AmountCents,
		"currency":     latest.Currency,
		"paid_at":      latest.PaidAt,
	})
}
