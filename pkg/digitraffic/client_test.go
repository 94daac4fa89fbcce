package digitraffic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/punctuality/pkg/trains"
)

const train1719 = `[{
	"trainNumber": 1719,
	"departureDate": "2026-01-27",
	"trainType": "HL",
	"operatorShortCode": "vr",
	"runningCurrently": false,
	"cancelled": false,
	"timeTableRows": [
		{"stationShortCode": "LPÄ", "type": "DEPARTURE", "scheduledTime": "2026-01-27T06:20:00Z", "actualTime": "2026-01-27T06:22:00Z", "differenceInMinutes": 2, "commercialStop": true, "cancelled": false},
		{"stationShortCode": "TPE", "type": "ARRIVAL", "scheduledTime": "2026-01-27T06:40:00Z", "actualTime": "2026-01-27T06:42:00Z", "differenceInMinutes": 2, "commercialStop": true, "cancelled": false}
	]
}]`

func newTestClient(url string) *Client {
	client := NewClient()
	client.BaseURL = url
	client.GraphQLURL = url + "/graphql"
	client.InitialBackoff = time.Millisecond
	client.Timeout = time.Second
	return client
}

func TestFetchTrain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trains/2026-01-27/1719", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, train1719)
	}))
	defer server.Close()

	response, err := newTestClient(server.URL).FetchTrain(context.Background(), "2026-01-27", 1719)
	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, 1719, response.TrainNumber)
	assert.Len(t, response.TimeTableRows, 2)
}

func TestFetchObservation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, train1719)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	observation, err := client.FetchObservation(context.Background(), "2026-01-27", 1719, trains.Leg{From: "LPÄ", To: "TPE"})
	require.NoError(t, err)
	require.NotNil(t, observation)
	assert.Equal(t, trains.StatusSlightDelay, observation.Status)

	observation, err = client.FetchObservation(context.Background(), "2026-01-27", 1719, trains.Leg{From: "TPE", To: "LPÄ"})
	require.NoError(t, err)
	assert.Nil(t, observation)
}

func TestFetchTrainNoData(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"empty array": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "[]")
		},
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			response, err := newTestClient(server.URL).FetchTrain(context.Background(), "2026-01-27", 1719)
			assert.NoError(t, err)
			assert.Nil(t, response)
		})
	}
}

func TestFetchTrainRetriesServerErrorsOnce(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTrain(context.Background(), "2026-01-27", 1719)

	var statusError *StatusError
	require.ErrorAs(t, err, &statusError)
	assert.Equal(t, http.StatusBadGateway, statusError.StatusCode)
	assert.Equal(t, int64(2), requests.Load())
}

func TestFetchTrainRecoversOnRetry(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, train1719)
	}))
	defer server.Close()

	response, err := newTestClient(server.URL).FetchTrain(context.Background(), "2026-01-27", 1719)
	require.NoError(t, err)
	assert.NotNil(t, response)
	assert.Equal(t, int64(2), requests.Load())
}

func TestFetchTrainPermanentFailures(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"bad request": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		},
		"malformed payload": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"trainNumber":`)
		},
	} {
		t.Run(name, func(t *testing.T) {
			var requests atomic.Int64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				handler(w, r)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchTrain(context.Background(), "2026-01-27", 1719)
			assert.Error(t, err)
			assert.Equal(t, int64(1), requests.Load())
		})
	}
}

func TestFetchTrainTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.Timeout = 20 * time.Millisecond

	_, err := client.FetchTrain(context.Background(), "2026-01-27", 1719)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/graphql", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["query"], `departureDate: "2026-01-27"`)
		assert.Contains(t, body["query"], `equals: "LPÄ"`)

		io.WriteString(w, `{"data": {"trainsByDepartureDate": [
			{"trainNumber": 1719, "departureDate": "2026-01-27", "trainType": {"name": "HL"}, "cancelled": false, "timeTableRows": [
				{"type": "DEPARTURE", "scheduledTime": "2026-01-27T06:20:00Z", "actualTime": "2026-01-27T06:21:00Z", "differenceInMinutes": 1, "cancelled": false, "station": {"shortCode": "LPÄ"}},
				{"type": "ARRIVAL", "scheduledTime": "2026-01-27T06:40:00Z", "cancelled": false, "station": {"shortCode": "TPE"}}
			]},
			{"trainNumber": 9700, "departureDate": "2026-01-27", "trainType": {"name": "HL"}, "cancelled": false, "timeTableRows": [
				{"type": "DEPARTURE", "scheduledTime": "2026-01-27T14:35:00Z", "cancelled": false, "station": {"shortCode": "TPE"}},
				{"type": "ARRIVAL", "scheduledTime": "2026-01-27T14:55:00Z", "cancelled": false, "station": {"shortCode": "LPÄ"}}
			]},
			{"trainNumber": 8000, "departureDate": "2026-01-27", "trainType": {"name": "IC"}, "cancelled": false, "timeTableRows": [
				{"type": "DEPARTURE", "scheduledTime": "2026-01-27T10:00:00Z", "cancelled": false, "station": {"shortCode": "LPÄ"}},
				{"type": "ARRIVAL", "scheduledTime": "2026-01-27T11:00:00Z", "cancelled": false, "station": {"shortCode": "HKI"}}
			]}
		]}}`)
	}))
	defer server.Close()

	routeTrains, err := newTestClient(server.URL).FetchRoute(context.Background(), "2026-01-27", "LPÄ", "TPE")
	require.NoError(t, err)
	require.Len(t, routeTrains, 2)

	assert.Equal(t, 1719, routeTrains[0].TrainNumber)
	assert.Equal(t, trains.DirectionOutbound, routeTrains[0].Direction)
	assert.Equal(t, "2026-01-27T06:20:00Z", routeTrains[0].ScheduledDeparture)
	require.NotNil(t, routeTrains[0].Observation)
	assert.Equal(t, trains.StatusOnTime, routeTrains[0].Observation.Status)

	assert.Equal(t, 9700, routeTrains[1].TrainNumber)
	assert.Equal(t, trains.DirectionReturn, routeTrains[1].Direction)
	assert.Equal(t, "TPE", routeTrains[1].From)
}

func TestFetchRouteGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors": [{"message": "bad filter"}, {"message": "bad order"}]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchRoute(context.Background(), "2026-01-27", "LPÄ", "TPE")
	assert.EqualError(t, err, "bad filter; bad order")
}

func TestFetchRouteQuotesStation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["query"], `equals: "LPÄ\" } } } }"`)

		io.WriteString(w, `{"data": {"trainsByDepartureDate": []}}`)
	}))
	defer server.Close()

	routeTrains, err := newTestClient(server.URL).FetchRoute(context.Background(), "2026-01-27", `LPÄ" } } } }`, "TPE")
	require.NoError(t, err)
	assert.Empty(t, routeTrains)
}
