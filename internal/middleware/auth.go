package middleware

import (
	"strings"

	"github.com/findcamp/backend/internal/identity"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/findcamp/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const firebaseUIDKey = "firebaseUID"

// AuthMiddleware verifies bearer tokens against the identity provider before
// protected handlers run. Verification is stateless and happens on every
// request; the verified subject uid is forwarded via Fiber locals.
type AuthMiddleware struct {
	Identity identity.Provider
}

func NewAuthMiddleware(provider identity.Provider) *AuthMiddleware {
	return &AuthMiddleware{Identity: provider}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("token_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Fail(c, fiber.StatusUnauthorized, "No token provided")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("token_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	token, err := a.Identity.VerifyToken(c.Context(), tokenString)
	if err != nil {
		logger.Warn("token_verification_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	c.Locals(firebaseUIDKey, token.UID)
	return c.Next()
}

// GetFirebaseUID returns the verified subject uid set by RequireAuth, or an
// empty string on unprotected routes.
func GetFirebaseUID(c *fiber.Ctx) string {
	uid, _ := c.Locals(firebaseUIDKey).(string)
	return uid
}
