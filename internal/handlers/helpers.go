package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/wajihaissa/fahamni/internal/models"
)

// currentUser resolves the authenticated user from the email the auth
// middleware placed in the context.
func currentUser(c echo.Context, db *gorm.DB) (*models.User, error) {
	email, _ := c.Get("userEmail").(string)
	if email == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var user models.User
	if err := db.WithContext(c.Request().Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown account")
		}
		return nil, err
	}
	return &user, nil
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
