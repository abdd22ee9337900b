package server

import (
	"context"
	"errors"
	"time"

	"civicf7/bridge"
	"civicf7/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

type Server struct {
	config *config.Config
	fiber  *fiber.App
	core   *bridge.Core

	outcomeStreamer *OutcomeStreamer
	stopStreamer    context.CancelFunc
	logger          zerolog.Logger
}

func (a *Server) Shutdown() error {
	if a.stopStreamer != nil {
		a.stopStreamer()
	}
	var errs []error
	if err := a.fiber.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if a.core != nil {
		if err := a.core.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewServer(cfg *config.Config, core *bridge.Core, logger zerolog.Logger) *Server {
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	fiberApp.Use(cors.New())
	fiberApp.Use(recover.New())

	app := &Server{
		fiber:  fiberApp,
		config: cfg,
		core:   core,
		logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.stopStreamer = cancel
	app.outcomeStreamer = NewOutcomeStreamer()
	go app.outcomeStreamer.Start(ctx, logger, core.Queue)
	go core.WatchStatus(ctx, 10*time.Second)

	app.setupRoutes()
	return app
}

func (a *Server) setupRoutes() {
	hooks := a.fiber.Group("/hooks")
	hooks.Post("/forms/:id/mail-sent", a.verifyHookSignature, a.MailSent)

	api := a.fiber.Group("/api")
	api.Get("/health", a.Health)
	api.Post("/auth/login", a.Login)

	admin := a.requireCapability
	api.Get("/settings", admin, a.GetSettings)
	api.Post("/settings", admin, a.SaveSettings)
	api.Delete("/settings", admin, a.ClearSettings)
	api.Post("/settings/test", admin, a.TestSettings)
	api.Get("/settings/notices", admin, a.Notices)

	api.Get("/forms", admin, a.ListForms)
	api.Get("/forms/:id", admin, a.GetForm)
	api.Put("/forms/:id", admin, a.SaveForm)

	api.Get("/outcomes/stream", admin, a.StreamOutcomes)
}

func (a *Server) Start() error {
	a.logger.Info().Msgf("Starting CiviCRM relay server on :%s", a.config.Port)
	return a.fiber.Listen(":" + a.config.Port)
}

func (a *Server) StreamOutcomes(c *fiber.Ctx) error {
	return a.outcomeStreamer.StreamFiber(c)
}
