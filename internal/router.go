package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewApp(h *Handlers, hub *Hub) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "bookstore",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(Metrics())

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	usr := api.Group("/user")
	usr.Post("/login", h.Login)
	usr.Post("/register", h.Register)

	usr.Get("/orders", h.RequireUser, h.GetOrders)
	usr.Post("/orders", h.RequireUser, h.CreateOrder)
	usr.Put("/orders/:id/cancel", h.RequireUser, h.CancelOrder)

	usr.Get("/cart", h.RequireUser, h.GetCart)
	usr.Post("/cart", h.RequireUser, h.AddToCart)

	admin := api.Group("/admin", h.RequireAdmin)
	admin.Post("/orders/complete", h.CompleteOrder)
	admin.Post("/announcements", h.CreateAnnouncement)

	api.Get("/notifications/ws", hub.Upgrade, hub.Handler())

	return app
}
