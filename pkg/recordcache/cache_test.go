package recordcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/kvstore"
	"github.com/travigo/punctuality/pkg/trains"
)

func newTestCache(t *testing.T) (*Cache, kvstore.Store) {
	t.Helper()

	store, err := kvstore.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	location, err := time.LoadLocation(calendar.DefaultTimezone)
	require.NoError(t, err)

	cal := calendar.Fixed(location, time.Date(2026, 2, 3, 12, 0, 0, 0, location))

	return New(store, cal), store
}

func observation(date string, trainNumber int, delay int) *trains.Observation {
	o := &trains.Observation{
		Date:               date,
		TrainNumber:        trainNumber,
		TrainType:          "HL",
		ScheduledDeparture: date + "T06:20:00Z",
		ScheduledArrival:   date + "T06:40:00Z",
		DelayMinutes:       delay,
	}
	o.Reclassify()
	return o
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	stored := observation("2026-01-27", 1719, 2)
	require.NoError(t, c.Put(ctx, stored.Date, stored.TrainNumber, stored))

	got, ok := c.Get(ctx, "2026-01-27", 1719)
	require.True(t, ok)
	assert.Equal(t, stored, got)

	_, ok = c.Get(ctx, "2026-01-27", 9700)
	assert.False(t, ok)
}

func TestGetRecomputesStatus(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	stale := observation("2026-01-27", 1719, 7)
	stale.Status = trains.StatusOnTime
	require.NoError(t, c.Put(ctx, stale.Date, stale.TrainNumber, stale))

	got, ok := c.Get(ctx, "2026-01-27", 1719)
	require.True(t, ok)
	assert.Equal(t, trains.StatusDelayed, got.Status)
}

func TestTodayIsNeverCached(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t)

	today := observation("2026-02-03", 1719, 0)
	require.NoError(t, c.Put(ctx, today.Date, today.TrainNumber, today))

	_, err := store.Get(ctx, ObservationKey{Date: "2026-02-03", TrainNumber: 1719}.StorageKey())
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	// even when something else wrote it
	require.NoError(t, store.Set(ctx, "train:2026-02-03:1719", `{"date":"2026-02-03","trainNumber":1719}`))
	_, ok := c.Get(ctx, "2026-02-03", 1719)
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Put(ctx, "2026-01-27", 1719, observation("2026-01-27", 1719, 2)))
	require.NoError(t, c.Put(ctx, "2026-01-27", 1719, observation("2026-01-27", 1719, 9)))

	got, ok := c.Get(ctx, "2026-01-27", 1719)
	require.True(t, ok)
	assert.Equal(t, 9, got.DelayMinutes)
	assert.Equal(t, trains.StatusDelayed, got.Status)
}

func TestMalformedEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t)

	require.NoError(t, store.Set(ctx, "train:2026-01-27:1719", "{not json"))

	got, ok := c.Get(ctx, "2026-01-27", 1719)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t)

	for _, date := range []string{"2025-10-31", "2025-11-04", "2025-11-05", "2026-01-27"} {
		require.NoError(t, c.Put(ctx, date, 1719, observation(date, 1719, 0)))
	}
	require.NoError(t, c.SetRouteSnapshot(ctx, &trains.RouteSnapshot{ReferenceDate: "2025-10-31"}))
	require.NoError(t, c.SetLastRefreshDate(ctx, "2025-10-31"))
	require.NoError(t, store.Set(ctx, SchemaVersionKey{}.StorageKey(), "v1"))

	removed, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get(ctx, "2025-10-31", 1719)
	assert.False(t, ok, "95 days old")
	_, ok = c.Get(ctx, "2025-11-04", 1719)
	assert.False(t, ok, "91 days old")
	_, ok = c.Get(ctx, "2025-11-05", 1719)
	assert.True(t, ok, "exactly 90 days old")
	_, ok = c.Get(ctx, "2026-01-27", 1719)
	assert.True(t, ok)

	snapshot, ok := c.RouteSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, "2025-10-31", snapshot.ReferenceDate)
	assert.Equal(t, "2025-10-31", c.LastRefreshDate(ctx))

	version, err := store.Get(ctx, SchemaVersionKey{}.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
}

func TestEnsureVersion(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t)

	reset, err := c.EnsureVersion(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, reset, "no marker yet")

	require.NoError(t, c.Put(ctx, "2026-01-27", 1719, observation("2026-01-27", 1719, 0)))

	reset, err = c.EnsureVersion(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, reset)
	_, ok := c.Get(ctx, "2026-01-27", 1719)
	assert.True(t, ok)

	reset, err = c.EnsureVersion(ctx, "v2")
	require.NoError(t, err)
	assert.True(t, reset)
	_, ok = c.Get(ctx, "2026-01-27", 1719)
	assert.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app:version"}, keys)
}
