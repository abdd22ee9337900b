package server

import (
	"strings"
	"time"

	"civicf7/auth"

	"github.com/gofiber/fiber/v2"
)

const tokenTTL = 12 * time.Hour

// requireCapability admits bearer tokens carrying the manage_options
// capability.
func (a *Server) requireCapability(c *fiber.Ctx) error {
	secret := a.config.Admin.JWTSecret
	if secret == "" {
		return c.Status(503).JSON(fiber.Map{"error": "Admin API is disabled"})
	}

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Authorization required"})
	}

	claims, err := auth.ParseToken([]byte(secret), strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if !claims.Can(auth.CapManageOptions) {
		return c.Status(403).JSON(fiber.Map{"error": "You do not have permission to manage CiviCRM settings"})
	}

	c.Locals("admin", claims.Subject)
	return c.Next()
}

func (a *Server) Login(c *fiber.Ctx) error {
	var request LoginRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	cfg := a.config.Admin
	if cfg.JWTSecret == "" || cfg.PasswordHash == "" {
		return c.Status(503).JSON(fiber.Map{"error": "Admin login is disabled"})
	}
	if request.Username != cfg.User || !auth.CheckPasswordHash(request.Password, cfg.PasswordHash) {
		a.logger.Warn().Str("username", request.Username).Msg("admin login rejected")
		return c.Status(401).JSON(fiber.Map{"error": "Invalid username or password"})
	}

	token, err := auth.IssueToken([]byte(cfg.JWTSecret), cfg.User, []string{auth.CapManageOptions}, tokenTTL, time.Now())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"token": token, "expires_in": int(tokenTTL.Seconds())})
}
