package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (a *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	status := a.core.Status(ctx)
	state := "healthy"
	if !status.Healthy() {
		state = "unhealthy"
	}

	return c.JSON(fiber.Map{
		"status": state,
		"driver": status.Driver,
		"store":  status.StoreState,
		"cache":  status.CacheState,
	})
}
