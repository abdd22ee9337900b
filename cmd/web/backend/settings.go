package server

import (
	"errors"

	"civicf7/bridge"

	"github.com/gofiber/fiber/v2"
)

func (a *Server) GetSettings(c *fiber.Ctx) error {
	ctx := c.UserContext()
	creds, err := a.core.Admin.Settings(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	lastTest, err := a.core.Admin.LastTest(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to read cached connection test")
	}

	return c.JSON(fiber.Map{
		"settings":  creds.Masked(),
		"last_test": lastTest,
	})
}

// SaveSettings stores the credentials. With ?test=1 the connection is
// checked first and nothing is stored when it fails.
func (a *Server) SaveSettings(c *fiber.Ctx) error {
	var request SettingsRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	test := c.QueryBool("test", false)
	notices, err := a.core.Admin.Save(c.UserContext(), bridge.Credentials{
		Endpoint: request.CiviCRMURL,
		APIKey:   request.APIKey,
		SiteKey:  request.SiteKey,
	}, test)
	if errors.Is(err, bridge.ErrInvalidSettings) {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	saved := true
	for _, n := range notices {
		if !n.OK() {
			saved = false
		}
	}

	creds, err := a.core.Admin.Settings(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"saved":    saved,
		"notices":  notices,
		"settings": creds.Masked(),
	})
}

// TestSettings tests the posted credentials, or the stored ones when the
// body is empty.
func (a *Server) TestSettings(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if len(c.Body()) == 0 {
		notice, err := a.core.Admin.TestStored(ctx)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"notice": notice})
	}

	var request SettingsRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	current, err := a.core.Admin.Settings(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	creds, err := bridge.SanitizeCredentials(bridge.Credentials{
		Endpoint: request.CiviCRMURL,
		APIKey:   request.APIKey,
		SiteKey:  request.SiteKey,
	}.Unmask(current))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"notice": a.core.Admin.TestConnection(ctx, creds)})
}

func (a *Server) ClearSettings(c *fiber.Ctx) error {
	if err := a.core.Admin.Clear(c.UserContext()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "CiviCRM settings cleared"})
}

func (a *Server) Notices(c *fiber.Ctx) error {
	notices, err := a.core.Admin.Notices(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if notices == nil {
		notices = []bridge.Notice{}
	}
	return c.JSON(fiber.Map{"notices": notices})
}
