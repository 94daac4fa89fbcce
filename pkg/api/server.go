package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/punctuality/pkg/api/routes"
	"github.com/travigo/punctuality/pkg/app"
)

func NewServer(application *app.Application) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/punctuality")

	group.Get("version", routes.APIVersion)

	routes.PlanRouter(group.Group("/plan"), application)
	routes.FetchRouter(group.Group("/fetch"), application)
	routes.RouteRouter(group.Group("/route"), application)

	return webApp
}

func SetupServer(listen string, application *app.Application) error {
	return NewServer(application).Listen(listen)
}
