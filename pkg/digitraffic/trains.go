package digitraffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/travigo/punctuality/pkg/trains"
)

// FetchTrain looks up one train on one date. A nil response with a nil error
// means the API has no data for it yet.
func (c *Client) FetchTrain(ctx context.Context, date string, trainNumber int) (*trains.TrainResponse, error) {
	url := fmt.Sprintf("%s/trains/%s/%d", c.BaseURL, date, trainNumber)

	return withRetry(ctx, c, url, func(ctx context.Context) (*trains.TrainResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		body, statusCode, err := c.do(req)
		if err != nil {
			return nil, err
		}

		if statusCode == http.StatusNotFound {
			return nil, nil
		}
		if statusCode < 200 || statusCode > 299 {
			return nil, classify(&StatusError{StatusCode: statusCode, Status: fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))})
		}

		var responses []trains.TrainResponse
		if err := json.Unmarshal(body, &responses); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode train response: %w", err))
		}

		if len(responses) == 0 {
			return nil, nil
		}

		return &responses[0], nil
	})
}

// FetchObservation fetches a train and parses the given leg out of it
func (c *Client) FetchObservation(ctx context.Context, date string, trainNumber int, leg trains.Leg) (*trains.Observation, error) {
	response, err := c.FetchTrain(ctx, date, trainNumber)
	if err != nil {
		return nil, err
	}

	return trains.ParseResponse(response, leg.From, leg.To), nil
}
