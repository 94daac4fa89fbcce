package digitraffic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://rata.digitraffic.fi/api/v1"
const DefaultGraphQLURL = "https://rata.digitraffic.fi/api/v2/graphql/graphql"

const DefaultTimeout = 8 * time.Second
const DefaultRetries = 1
const DefaultInitialBackoff = 500 * time.Millisecond

const userAgent = "travigo-punctuality/1.0"

// StatusError is returned for non-success HTTP responses other than 404
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %s", e.Status)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	BaseURL    string
	GraphQLURL string
	HTTPClient *http.Client

	// Timeout bounds every single attempt
	Timeout        time.Duration
	Retries        uint64
	InitialBackoff time.Duration
}

func NewClient() *Client {
	return &Client{
		BaseURL:        DefaultBaseURL,
		GraphQLURL:     DefaultGraphQLURL,
		HTTPClient:     &http.Client{},
		Timeout:        DefaultTimeout,
		Retries:        DefaultRetries,
		InitialBackoff: DefaultInitialBackoff,
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = c.InitialBackoff

	return backoff.WithContext(backoff.WithMaxRetries(exponential, c.Retries), ctx)
}

// withRetry runs one attempt per call of attempt, each under its own timeout.
// Errors wrapped with backoff.Permanent are not retried.
func withRetry[T any](ctx context.Context, c *Client, description string, attempt func(ctx context.Context) (T, error)) (T, error) {
	attemptNumber := 0

	operation := func() (T, error) {
		attemptNumber++

		attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		result, err := attempt(attemptCtx)
		if err != nil {
			log.Debug().Err(err).Str("request", description).Int("attempt", attemptNumber).Msg("Digitraffic request failed")
		}
		return result, err
	}

	return backoff.RetryWithData(operation, c.newBackOff(ctx))
}

// classify marks errors that repeating the request cannot fix as permanent
func classify(err error) error {
	var statusError *StatusError
	if errors.As(err, &statusError) && !statusError.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
