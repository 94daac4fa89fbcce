package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/routesync"
	"github.com/travigo/punctuality/pkg/trains"
)

func RouteRouter(router fiber.Router, application *app.Application) {
	router.Get("/", func(c *fiber.Ctx) error {
		return getRoute(c, application)
	})
	router.Post("/refresh", func(c *fiber.Ctx) error {
		return refreshRoute(c, application)
	})
}

func getRoute(c *fiber.Ctx, application *app.Application) error {
	snapshot, ok := application.Cache.RouteSnapshot(c.Context())
	if !ok {
		c.Status(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No route snapshot stored yet",
		})
	}

	return c.JSON(routeResponse(c, application, snapshot))
}

func refreshRoute(c *fiber.Ctx, application *app.Application) error {
	refreshed, err := application.Refresher.RefreshOnce(c.Context())
	if err != nil {
		c.Status(fiber.StatusBadGateway)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	snapshot, _ := application.Cache.RouteSnapshot(c.Context())

	response := routeResponse(c, application, snapshot)
	response["refreshed"] = refreshed

	return c.JSON(response)
}

func routeResponse(c *fiber.Ctx, application *app.Application, snapshot *trains.RouteSnapshot) fiber.Map {
	response := fiber.Map{
		"route":       application.Config.Route,
		"lastRefresh": application.Cache.LastRefreshDate(c.Context()),
		"candidates": fiber.Map{
			string(trains.DirectionOutbound): routesync.Candidates(snapshot, trains.DirectionOutbound),
			string(trains.DirectionReturn):   routesync.Candidates(snapshot, trains.DirectionReturn),
		},
	}

	if snapshot != nil {
		response["referenceDate"] = snapshot.ReferenceDate
		response["trains"] = snapshot.Trains
	}

	return response
}
