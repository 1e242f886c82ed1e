// Package auth validates bearer tokens on the HTTP surface and resolves the
// caller identity that notification records are keyed by.
package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityLocalKey = "auth.identity"

// identityClaims lists the token claims checked, in order, before falling
// back to the subject. Cognito user-pool tokens carry the username under
// cognito:username rather than username.
var identityClaims = []string{"username", "cognito:username"}

// Middleware returns a fiber handler that rejects requests without a valid
// HS256 bearer token and stores the resolved identity in request locals.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		identity := ResolveIdentity(claims)
		if identity == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token carries no identity")
		}

		c.Locals(identityLocalKey, identity)
		return c.Next()
	}
}

// ResolveIdentity extracts the caller identity from token claims, preferring
// username-style claims over the opaque subject.
func ResolveIdentity(claims jwt.MapClaims) string {
	for _, name := range identityClaims {
		if value, ok := claims[name].(string); ok {
			if identity := strings.TrimSpace(value); identity != "" {
				return identity
			}
		}
	}

	if sub, ok := claims["sub"].(string); ok {
		return strings.TrimSpace(sub)
	}

	return ""
}

// IdentityFromContext returns the identity stored by Middleware.
func IdentityFromContext(c *fiber.Ctx) string {
	identity, _ := c.Locals(identityLocalKey).(string)
	return identity
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}

	return token, nil
}
