package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/punctuality/pkg/app"
)

func PlanRouter(router fiber.Router, application *app.Application) {
	router.Get("/", func(c *fiber.Ctx) error {
		return getPlan(c, application)
	})
}

func getPlan(c *fiber.Ctx, application *app.Application) error {
	query, err := getRangeQuery(c, application)
	if err != nil {
		return badRequest(c, err)
	}

	ceiling := application.Orchestrator.MaxAPICalls

	plan, err := application.Planner.PlanWithin(c.Context(), query.Start, query.End, query.Pair.Numbers(), ceiling)
	if err != nil {
		return badRequest(c, err)
	}

	return c.JSON(fiber.Map{
		"start":        query.Start,
		"end":          query.End,
		"trains":       query.Pair.Numbers(),
		"businessDays": plan.BusinessDays,
		"neededCalls":  plan.NeededCalls,
		"maxApiCalls":  ceiling,
		"tooManyCalls": plan.Exceeds(ceiling),
		"truncated":    plan.Truncated,
		"calls":        plan.Calls,
		"cachedCount":  len(plan.Cached),
		"endInFuture":  application.Calendar.IsEndDateInFuture(query.End),
	})
}
