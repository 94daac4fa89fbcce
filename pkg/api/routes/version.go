package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/punctuality/pkg/app"
)

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": app.Version,
	})
}
