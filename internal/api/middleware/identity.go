package middleware

import (
	"net/http"
	"strings"

	"auction-ledger/internal/auth"
	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"

	"github.com/labstack/echo/v4"
)

const ctxCaller = "caller"

// Identity resolves the caller from a bearer token. Handlers read it with CallerFrom.
func Identity(secret string, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
			}

			claims, err := auth.ParseJWT(secret, tokenStr)
			if err != nil {
				log.Debug("jwt parse error", "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			}

			c.Set(ctxCaller, claims.Bidder)
			return next(c)
		}
	}
}

func CallerFrom(c echo.Context) domain.Bidder {
	caller, _ := c.Get(ctxCaller).(domain.Bidder)
	return caller
}
