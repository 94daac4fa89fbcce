package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/planner"
	"github.com/travigo/punctuality/pkg/trains"
)

type rangeQuery struct {
	Start string
	End   string
	Pair  trains.TrainPair
}

// getRangeQuery reads start, end and trains, falling back to the last two
// weeks and the configured pair
func getRangeQuery(c *fiber.Ctx, application *app.Application) (*rangeQuery, error) {
	defaultStart, defaultEnd := application.Calendar.DefaultDateRange()

	query := &rangeQuery{
		Start: c.Query("start", defaultStart),
		End:   c.Query("end", defaultEnd),
		Pair:  application.Config.DefaultPair(),
	}

	if _, err := application.Calendar.ParseDate(query.Start); err != nil {
		return nil, err
	}
	if _, err := application.Calendar.ParseDate(query.End); err != nil {
		return nil, err
	}
	if query.Start > query.End {
		return nil, fiber.NewError(fiber.StatusBadRequest, "start must not be after end")
	}
	if err := planner.ValidateRange(application.Calendar, query.Start, query.End); err != nil {
		return nil, err
	}

	if value := c.Query("trains"); value != "" {
		pair, err := trains.ParseTrainPair(value)
		if err != nil {
			return nil, err
		}
		query.Pair = pair
	}

	return query, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	c.Status(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}
