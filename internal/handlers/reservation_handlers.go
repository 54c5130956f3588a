package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/wajihaissa/fahamni/internal/models"
	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

type ReservationHandler struct {
	db           *gorm.DB
	reservations *services.ReservationService
	payments     *services.PaymentService
	store        *repository.ReservationRepository
}

func NewReservationHandler(db *gorm.DB, reservations *services.ReservationService, payments *services.PaymentService, store *repository.ReservationRepository) *ReservationHandler {
	return &ReservationHandler{db: db, reservations: reservations, payments: payments, store: store}
}

// CreateReservation books the seance for the authenticated user
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	seanceID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var seance models.Seance
	if err := h.db.WithContext(c.Request().Context()).Preload("Tuteur").First(&seance, seanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "seance not found")
		}
		return err
	}

	reservation, err := h.reservations.Create(c.Request().Context(), &seance, user)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, reservation)
}

// GetReservation returns the reservation together with its latest payment
// transaction for status display.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	reservation, err := h.loadReservation(c)
	if err != nil {
		return err
	}

	latest, err := h.payments.Latest(c.Request().Context(), reservation)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"reservation":        reservation,
		"latest_transaction": latest,
	})
}

// AcceptReservation marks the reservation accepted by the tutor
func (h *ReservationHandler) AcceptReservation(c echo.Context) error {
	reservation, err := h.loadReservation(c)
	if err != nil {
		return err
	}

	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}
	if reservation.Seance.TuteurID != user.ID && user.Role != models.UserRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only the tutor can accept a reservation")
	}

	if err := h.reservations.Accept(c.Request().Context(), reservation); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reservation)
}

// CancelReservation records the cancellation timestamp
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	reservation, err := h.loadReservation(c)
	if err != nil {
		return err
	}

	if err := h.reservations.Cancel(c.Request().Context(), reservation, time.Now()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) loadReservation(c echo.Context) (*models.Reservation, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, err
	}

	reservation, err := h.store.FindByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "reservation not found")
	}
	return reservation, nil
}
