package digitraffic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/travigo/punctuality/pkg/trains"
)

// The date and station are inlined as quoted literals rather than passed as
// variables, the API answers 400 to the variable form of this query.
const routeQueryTemplate = `query RouteToday {
  trainsByDepartureDate(
    departureDate: %s,
    where: { timeTableRows: { contains: { station: { shortCode: { equals: %s } } } } },
    orderBy: { trainNumber: ASCENDING }
  ) {
    trainNumber
    departureDate
    trainType { name }
    cancelled
    timeTableRows {
      type
      scheduledTime
      actualTime
      differenceInMinutes
      cancelled
      station { shortCode }
    }
  }
}`

type graphQLTimeTableRow struct {
	Type                string  `json:"type"`
	ScheduledTime       string  `json:"scheduledTime"`
	ActualTime          *string `json:"actualTime"`
	DifferenceInMinutes *int    `json:"differenceInMinutes"`
	Cancelled           bool    `json:"cancelled"`
	Station             *struct {
		ShortCode string `json:"shortCode"`
	} `json:"station"`
}

type graphQLTrain struct {
	TrainNumber   int    `json:"trainNumber"`
	DepartureDate string `json:"departureDate"`
	TrainType     *struct {
		Name string `json:"name"`
	} `json:"trainType"`
	Cancelled     bool                  `json:"cancelled"`
	TimeTableRows []graphQLTimeTableRow `json:"timeTableRows"`
}

type graphQLResponse struct {
	Data *struct {
		TrainsByDepartureDate []graphQLTrain `json:"trainsByDepartureDate"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *graphQLTrain) toTrainResponse() *trains.TrainResponse {
	response := &trains.TrainResponse{
		TrainNumber:   g.TrainNumber,
		DepartureDate: g.DepartureDate,
		Cancelled:     g.Cancelled,
		TimeTableRows: make([]trains.TimeTableRow, 0, len(g.TimeTableRows)),
	}
	if g.TrainType != nil {
		response.TrainType = g.TrainType.Name
	}

	for _, row := range g.TimeTableRows {
		stationShortCode := ""
		if row.Station != nil {
			stationShortCode = row.Station.ShortCode
		}

		response.TimeTableRows = append(response.TimeTableRows, trains.TimeTableRow{
			StationShortCode:    stationShortCode,
			Type:                trains.TimeTableRowType(row.Type),
			ScheduledTime:       row.ScheduledTime,
			ActualTime:          row.ActualTime,
			DifferenceInMinutes: row.DifferenceInMinutes,
			Cancelled:           row.Cancelled,
		})
	}

	return response
}

// FetchRoute lists every train running between the two stations on the date,
// in either direction. Direction is outbound for trains running from -> to.
func (c *Client) FetchRoute(ctx context.Context, date string, from string, to string) ([]trains.RouteTrain, error) {
	payload, err := json.Marshal(map[string]string{
		"query": fmt.Sprintf(routeQueryTemplate, strconv.Quote(date), strconv.Quote(from)),
	})
	if err != nil {
		return nil, err
	}

	graphQLTrains, err := withRetry(ctx, c, c.GraphQLURL, func(ctx context.Context) ([]graphQLTrain, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GraphQLURL, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		body, statusCode, err := c.do(req)
		if err != nil {
			return nil, err
		}

		if statusCode < 200 || statusCode > 299 {
			return nil, classify(&StatusError{StatusCode: statusCode, Status: fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))})
		}

		var response graphQLResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode graphql response: %w", err))
		}

		if len(response.Errors) > 0 {
			messages := make([]string, 0, len(response.Errors))
			for _, e := range response.Errors {
				messages = append(messages, e.Message)
			}
			return nil, backoff.Permanent(errors.New(strings.Join(messages, "; ")))
		}

		if response.Data == nil {
			return nil, nil
		}

		return response.Data.TrainsByDepartureDate, nil
	})
	if err != nil {
		return nil, err
	}

	routeTrains := []trains.RouteTrain{}

	for i := range graphQLTrains {
		response := graphQLTrains[i].toTrainResponse()
		if !response.HasStation(from) || !response.HasStation(to) {
			continue
		}

		leg, ok := response.LegBetween(from, to)
		if !ok {
			continue
		}

		observation := trains.ParseResponse(response, leg.From, leg.To)
		if observation == nil {
			continue
		}

		routeTrains = append(routeTrains, trains.RouteTrain{
			TrainNumber:        observation.TrainNumber,
			TrainType:          observation.TrainType,
			Direction:          leg.Direction,
			From:               leg.From,
			To:                 leg.To,
			ScheduledDeparture: observation.ScheduledDeparture,
			Observation:        observation,
		})
	}

	return routeTrains, nil
}
