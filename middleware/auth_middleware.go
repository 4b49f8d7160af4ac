package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"travel-expense/auth"
	"travel-expense/models"
)

const (
	localUserID = "userID"
	localClaims = "claims"
)

// JWTMiddleware validates the bearer token in the Authorization header and
// stores its claims for the handlers. Revoked tokens are rejected.
func JWTMiddleware(tokens *auth.TokenManager, denylist auth.Denylist, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Invalid token format"})
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Invalid or expired token"})
		}

		revoked, err := denylist.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			logger.Error("token revocation lookup failed", zap.Error(err), zap.String("jti", claims.ID))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not verify token"})
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Token has been revoked"})
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localClaims, claims)

		return c.Next()
	}
}

// UserID returns the authenticated user's ID set by JWTMiddleware.
func UserID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(localUserID).(int64)
	return id, ok
}

// Claims returns the verified token claims set by JWTMiddleware.
func Claims(c *fiber.Ctx) (*models.JwtClaims, bool) {
	claims, ok := c.Locals(localClaims).(*models.JwtClaims)
	return claims, ok
}
