package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const accountIDContextKey = "account_id"

// Claims is the token payload issued by the identity service. Only the
// account id matters here; everything else rides along.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token and stashes the caller's account id
// in the request context. Every route behind it has a verified identity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization header is not a bearer token")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, okMethod := t.Method.(*jwt.SigningMethodHMAC); !okMethod {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.AccountID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token carries no account id")
			}

			c.Set(accountIDContextKey, claims.AccountID)
			return next(c)
		}
	}
}

// CurrentAccountID returns the authenticated account id set by JWTAuth.
func CurrentAccountID(c echo.Context) string {
	id, _ := c.Get(accountIDContextKey).(string)
	return id
}
