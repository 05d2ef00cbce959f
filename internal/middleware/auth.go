package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/proxygrid/proxygrid/internal/config"
	"github.com/proxygrid/proxygrid/pkg/response"
)

type Claims struct {
	ActorID string `json:"actorId"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the
// authenticated actor id in locals. Identity is issued upstream; this
// service only verifies and extracts it.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Invalid or missing token")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid or missing token")
		}

		claims, err := parseJWT(parts[1], cfg.JWTSecret)
		if err != nil || claims.ActorID == "" {
			return response.Unauthorized(c, "Invalid token")
		}

		c.Locals("actorId", claims.ActorID)
		return c.Next()
	}
}

func parseJWT(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
}

// ActorID returns the authenticated actor id set by AuthMiddleware.
func ActorID(c *fiber.Ctx) string {
	actorID, _ := c.Locals("actorId").(string)
	return actorID
}

// InternalApiKeyMiddleware validates the X-Api-Key header against
// INTERNAL_API_KEY. Used by internal services: health monitors and the
// config-snapshot builder.
func InternalApiKeyMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-Api-Key")

		if apiKey == "" {
			return response.Unauthorized(c, "Missing API key header")
		}

		if cfg.InternalApiKey == "" {
			return response.InternalServerError(c, "Internal API key is not configured")
		}

		if apiKey != cfg.InternalApiKey {
			return response.Unauthorized(c, "Invalid API key")
		}

		return c.Next()
	}
}
