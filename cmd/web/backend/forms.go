package server

import (
	"errors"

	"civicf7/bridge"

	"github.com/gofiber/fiber/v2"
)

func (a *Server) ListForms(c *fiber.Ctx) error {
	forms, err := a.core.Store.ListForms(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if forms == nil {
		forms = []bridge.FormSettings{}
	}
	return c.JSON(fiber.Map{"forms": forms, "total": len(forms)})
}

func (a *Server) GetForm(c *fiber.Ctx) error {
	formID, err := bridge.ParseFormID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	view, err := a.core.Panel.Load(c.UserContext(), formID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(view)
}

func (a *Server) SaveForm(c *fiber.Ctx) error {
	formID, err := bridge.ParseFormID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	var request FormRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	saved, err := a.core.Panel.Save(c.UserContext(), formID, bridge.PanelInput{
		Enabled:      request.Enabled,
		Action:       request.Action,
		FieldMapping: request.FieldMapping,
	})
	if errors.Is(err, bridge.ErrInvalidAction) || errors.Is(err, bridge.ErrInvalidFormID) {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Form settings saved", "form": saved})
}
