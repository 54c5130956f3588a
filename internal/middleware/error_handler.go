package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wajihaissa/fahamni/internal/services"
)

// JSONErrorHandler maps service errors to HTTP status codes and renders a
// uniform JSON error body.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.Is(err, services.ErrDuplicateCheckoutSession):
		code = http.StatusConflict
		message = "checkout session already exists"
	case errors.Is(err, services.ErrReservationAlreadyPaid):
		code = http.StatusConflict
		message = "reservation is already paid"
	case errors.Is(err, services.ErrSeanceFull):
		code = http.StatusConflict
		message = "seance has no remaining capacity"
	case errors.Is(err, services.ErrTransactionNotFound):
		code = http.StatusNotFound
		message = "payment transaction not found"
	}

	if code == http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if sendErr := c.JSON(code, map[string]any{"error": message}); sendErr != nil {
		c.Logger().Error(sendErr)
	}
}
