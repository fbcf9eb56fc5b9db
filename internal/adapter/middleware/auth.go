package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorKey = "actor_id"

// Actor returns the authenticated user id, empty when the route is unauthenticated.
func Actor(c echo.Context) string {
	v, _ := c.Get(actorKey).(string)
	return v
}

// SetActor is used by tests and by JWTActor.
func SetActor(c echo.Context, actorID string) { c.Set(actorKey, actorID) }

func extractBearer(h string) string {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// JWTActor verifies HS256 tokens and stores the subject as the actor.
// Tokens are issued elsewhere.
func JWTActor(secret []byte, issuer string) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(2 * time.Minute),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token", "code": "unauthenticated"})
			}
			sub, err := subject(parser, raw, secret)
			if err != nil {
				c.Logger().Warnf("auth: token rejected: %v", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token", "code": "unauthenticated"})
			}
			SetActor(c, sub)
			return next(c)
		}
	}
}

func subject(p *jwt.Parser, raw string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth secret not configured")
	}
	claims := jwt.RegisteredClaims{}
	if _, err := p.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		return "", err
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// InternalSecret guards service-to-service routes with a shared bearer secret.
func InternalSecret(secret string) echo.MiddlewareFunc {
	want := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(extractBearer(c.Request().Header.Get(echo.HeaderAuthorization)))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized", "code": "unauthenticated"})
			}
			return next(c)
		}
	}
}
