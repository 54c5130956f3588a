package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// RequireAuth returns a middleware that verifies Firebase credentials:
// either a session cookie or a bearer ID token. The verified email lands
// in the echo context under "userEmail".
func RequireAuth(authClient *auth.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication is not configured")
			}

			token, err := verifyRequest(c, authClient)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing credentials")
			}

			c.Set("userUID", token.UID)
			if email, ok := token.Claims["email"].(string); ok {
				c.Set("userEmail", email)
			}
			if name, ok := token.Claims["name"].(string); ok {
				c.Set("userName", name)
			}

			return next(c)
		}
	}
}

func verifyRequest(c echo.Context, authClient *auth.Client) (*auth.Token, error) {
	ctx := c.Request().Context()

	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return authClient.VerifyIDToken(ctx, strings.TrimPrefix(header, "Bearer "))
	}

	cookie, err := c.Cookie("session")
	if err != nil || cookie.Value == "" {
		return nil, echo.ErrUnauthorized
	}
	return authClient.VerifySessionCookie(ctx, cookie.Value)
}
