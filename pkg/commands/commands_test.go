package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/config"
	"github.com/travigo/punctuality/pkg/kvstore"
	"github.com/urfave/cli/v2"
)

const trainTemplate = `[{
	"trainNumber": %[2]s,
	"departureDate": "%[1]s",
	"trainType": "HL",
	"cancelled": false,
	"timeTableRows": [
		{"stationShortCode": "LPÄ", "type": "DEPARTURE", "scheduledTime": "%[1]sT06:20:00Z", "actualTime": "%[1]sT06:23:00Z", "differenceInMinutes": 3, "cancelled": false},
		{"stationShortCode": "TPE", "type": "ARRIVAL", "scheduledTime": "%[1]sT06:40:00Z", "cancelled": false},
		{"stationShortCode": "TPE", "type": "DEPARTURE", "scheduledTime": "%[1]sT14:35:00Z", "cancelled": true},
		{"stationShortCode": "LPÄ", "type": "ARRIVAL", "scheduledTime": "%[1]sT14:55:00Z", "cancelled": true}
	]
}]`

func useTestApplication(t *testing.T) {
	t.Helper()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		io.WriteString(w, fmt.Sprintf(trainTemplate, parts[2], parts[3]))
	}))
	t.Cleanup(remote.Close)

	cfg, err := config.FromEnvironment(map[string]string{
		"PUNCTUALITY_API_BASE": remote.URL,
	})
	require.NoError(t, err)

	location, err := time.LoadLocation(calendar.DefaultTimezone)
	require.NoError(t, err)
	cal := calendar.Fixed(location, time.Date(2026, 2, 3, 12, 0, 0, 0, location))

	path := filepath.Join(t.TempDir(), "cache.db")

	original := setup
	setup = func(ctx context.Context) (*app.Application, error) {
		store, err := kvstore.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return app.NewWithCalendar(ctx, cfg, store, cal)
	}
	t.Cleanup(func() { setup = original })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var output bytes.Buffer

	application := NewApp()
	application.Writer = &output
	application.ExitErrHandler = func(*cli.Context, error) {}

	err := application.Run(append([]string{"punctuality"}, args...))

	return output.String(), err
}

func TestFetchCSV(t *testing.T) {
	useTestApplication(t)

	output, err := run(t, "fetch", "--start", "2026-01-29", "--end", "2026-01-30", "--format", "csv", "--ascending")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "date,day,train_number"))
	assert.Equal(t, "2026-01-29,to 29.1.,1719,HL,SLIGHT_DELAY,3,08:20,08:23,08:40,", lines[1])
	assert.Equal(t, "2026-01-29,to 29.1.,9700,HL,CANCELLED,0,16:35,,16:55,", lines[2])
}

func TestFetchTable(t *testing.T) {
	useTestApplication(t)

	output, err := run(t, "fetch", "--start", "2026-01-30", "--end", "2026-01-30")
	require.NoError(t, err)

	assert.Contains(t, output, "Morning train 8:20 – Lempäälä → Tampere")
	assert.Contains(t, output, "slight delay 100%")
	assert.Contains(t, output, "cancelled 1")
	assert.Contains(t, output, "pe 30.1.")
}

func TestFetchTooManyCalls(t *testing.T) {
	useTestApplication(t)

	_, err := run(t, "fetch", "--start", "2025-11-01", "--end", "2026-01-30")

	var exitError cli.ExitCoder
	require.ErrorAs(t, err, &exitError)
	assert.Equal(t, 2, exitError.ExitCode())
	assert.Contains(t, err.Error(), "too many API calls needed")
}

func TestPlanUsesCache(t *testing.T) {
	useTestApplication(t)

	output, err := run(t, "plan", "--start", "2026-01-26", "--end", "2026-01-30")
	require.NoError(t, err)
	assert.Contains(t, output, "5 business days, 0 cached, 10 calls needed (maximum 30)")

	_, err = run(t, "fetch", "--start", "2026-01-29", "--end", "2026-01-30", "--format", "json")
	require.NoError(t, err)

	output, err = run(t, "plan", "--start", "2026-01-26", "--end", "2026-01-30", "--debug")
	require.NoError(t, err)
	assert.Contains(t, output, "5 business days, 4 cached, 6 calls needed (maximum 30)")
	assert.Contains(t, output, "NeededCalls")
}

func TestCacheReset(t *testing.T) {
	useTestApplication(t)

	_, err := run(t, "fetch", "--start", "2026-01-30", "--end", "2026-01-30", "--format", "json")
	require.NoError(t, err)

	output, err := run(t, "cache", "reset")
	require.NoError(t, err)
	assert.Contains(t, output, "Cache cleared")

	output, err = run(t, "plan", "--start", "2026-01-30", "--end", "2026-01-30")
	require.NoError(t, err)
	assert.Contains(t, output, "2 calls needed")

	output, err = run(t, "cache", "sweep")
	require.NoError(t, err)
	assert.Contains(t, output, "Removed 0 expired observations")
}

func TestInvalidTrains(t *testing.T) {
	useTestApplication(t)

	_, err := run(t, "plan", "--trains", "1719")
	assert.Error(t, err)
}
