package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// bearerAuth validates "Authorization: Bearer <token>" or a token query
// parameter. An empty token disables the check.
func bearerAuth(token string) echo.MiddlewareFunc {
	if token == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,query:token",
		Validator: func(supplied string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) == 1, nil
		},
		ErrorHandler: func(_ error, c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		},
	})
}
