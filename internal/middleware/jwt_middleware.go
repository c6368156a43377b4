package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/services"
)

// UsernameKey is the c.Locals key under which AuthRequired stores the
// authenticated subject.
const UsernameKey = "username"

// AuthRequired is a Fiber middleware enforcing a valid bearer session token.
func AuthRequired(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperrors.New(apperrors.Authentication, "not authenticated")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.New(apperrors.Authentication, "authorization header format must be 'Bearer <token>'")
		}

		subject, err := tokens.Validate(parts[1])
		if err != nil {
			return apperrors.New(apperrors.Authentication, "could not validate credentials")
		}

		c.Locals(UsernameKey, subject)
		return c.Next()
	}
}

// Username returns the subject stored by AuthRequired.
func Username(c *fiber.Ctx) string {
	username, _ := c.Locals(UsernameKey).(string)
	return username
}
