package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/fetcher"
	"github.com/travigo/punctuality/pkg/stats"
)

func FetchRouter(router fiber.Router, application *app.Application) {
	router.Post("/", func(c *fiber.Ctx) error {
		return postFetch(c, application)
	})
}

func postFetch(c *fiber.Ctx, application *app.Application) error {
	query, err := getRangeQuery(c, application)
	if err != nil {
		return badRequest(c, err)
	}

	groups := []string{"basic"}
	if c.QueryBool("detail", false) {
		groups = append(groups, "detailed")
	}

	result, err := application.Orchestrator.PlanAndFetchSession(c.Context(), sessionKey(c), query.Start, query.End, query.Pair)

	var budgetError *fetcher.BudgetExceededError
	switch {
	case errors.As(err, &budgetError):
		c.Status(fiber.StatusUnprocessableEntity)
		return c.JSON(fiber.Map{
			"error":        err.Error(),
			"tooManyCalls": true,
			"neededCalls":  budgetError.Needed,
			"maxApiCalls":  budgetError.Ceiling,
			"attempted":    result.Attempted,
			"data":         result.Data,
		})
	case errors.Is(err, fetcher.ErrAllFetchesFailed):
		c.Status(fiber.StatusBadGateway)
		return c.JSON(fiber.Map{
			"error":       fetcher.ErrAllFetchesFailed.Error(),
			"failedCalls": len(result.Failures),
		})
	case errors.Is(err, fetcher.ErrSuperseded):
		c.Status(fiber.StatusConflict)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return badRequest(c, err)
	}

	data, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, result.Data)
	if err != nil {
		log.Error().Err(err).Msg("Sheriff could not reduce observations")

		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sheriff could not reduce observations",
		})
	}

	summaries := map[string]stats.Summary{}
	for trainNumber, summary := range stats.SummariesByTrain(result.Data, query.Pair) {
		summaries[strconv.Itoa(trainNumber)] = summary
	}

	return c.JSON(fiber.Map{
		"invocationId": result.InvocationID,
		"state":        result.State,
		"start":        query.Start,
		"end":          query.End,
		"trains":       query.Pair.Numbers(),
		"tooManyCalls": result.TooManyCalls,
		"neededCalls":  result.NeededCalls,
		"attempted":    result.Attempted,
		"failedCalls":  len(result.Failures),
		"data":         data,
		"summary":      stats.ComputeSummary(result.Data),
		"summaries":    summaries,
	})
}

// SessionHeader lets a client have its newer fetch supersede its older one.
// Requests without it never supersede anything.
const SessionHeader = "X-Punctuality-Session"

func sessionKey(c *fiber.Ctx) string {
	if session := c.Get(SessionHeader); session != "" {
		return "client:" + utils.CopyString(session)
	}
	return "request:" + utils.UUIDv4()
}
