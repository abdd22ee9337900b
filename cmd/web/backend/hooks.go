package server

import (
	"civicf7/auth"
	"civicf7/bridge"

	"github.com/gofiber/fiber/v2"
)

const signatureHeader = "X-Webhook-Signature"

// verifyHookSignature is a no-op unless a hook secret is configured.
func (a *Server) verifyHookSignature(c *fiber.Ctx) error {
	secret := a.config.HookSecret
	if secret == "" {
		return c.Next()
	}
	if !auth.VerifySignature(secret, c.Body(), c.Get(signatureHeader)) {
		a.logger.Warn().Str("path", c.Path()).Msg("rejected hook with invalid signature")
		return c.Status(401).JSON(fiber.Map{"error": "Invalid signature"})
	}
	return c.Next()
}

// MailSent relays one sent submission. The form's own submission already
// succeeded, so relay failures are reported in the body and never change the
// status code.
func (a *Server) MailSent(c *fiber.Ctx) error {
	formID, err := bridge.ParseFormID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	var request MailSentRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	outcome := a.core.Relay.HandleMailSent(c.UserContext(), formID, &bridge.Submission{
		FormID:     formID,
		Title:      request.Title,
		PostedData: request.PostedData,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"id":      outcome.Id,
		"state":   outcome.State,
	})
}
