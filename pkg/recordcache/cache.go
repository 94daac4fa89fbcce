package recordcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/kvstore"
	"github.com/travigo/punctuality/pkg/trains"
)

// RetentionDays is how long observations are kept before the sweep removes them
const RetentionDays = 90

// Cache stores observations keyed by (date, train number) together with a
// handful of reserved route and schema entries. Today's observations are
// never stored or returned as they may still change.
type Cache struct {
	store    kvstore.Store
	calendar *calendar.Calendar
}

func New(store kvstore.Store, cal *calendar.Calendar) *Cache {
	return &Cache{
		store:    store,
		calendar: cal,
	}
}

func (c *Cache) Calendar() *calendar.Calendar {
	return c.calendar
}

// Get returns the cached observation with its status recomputed. Anything
// that prevents a clean read counts as a miss.
func (c *Cache) Get(ctx context.Context, date string, trainNumber int) (*trains.Observation, bool) {
	if c.calendar.IsToday(date) {
		return nil, false
	}

	key := ObservationKey{Date: date, TrainNumber: trainNumber}

	stored, err := c.store.Get(ctx, key.StorageKey())
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Debug().Err(err).Str("key", key.StorageKey()).Msg("Cache read failed")
		}
		return nil, false
	}

	var observation trains.Observation
	if err := json.Unmarshal([]byte(stored), &observation); err != nil {
		log.Debug().Err(err).Str("key", key.StorageKey()).Msg("Ignoring malformed cache entry")
		return nil, false
	}

	observation.Reclassify()

	return &observation, true
}

// Put stores the observation unless the date is today, in which case it
// silently does nothing.
func (c *Cache) Put(ctx context.Context, date string, trainNumber int, observation *trains.Observation) error {
	if c.calendar.IsToday(date) {
		return nil
	}

	encoded, err := json.Marshal(observation)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}

	key := ObservationKey{Date: date, TrainNumber: trainNumber}
	if err := c.store.Set(ctx, key.StorageKey(), string(encoded)); err != nil {
		return fmt.Errorf("store %s: %w", key.StorageKey(), err)
	}

	return nil
}

// Sweep removes observations dated more than RetentionDays before today. An
// observation exactly RetentionDays old is kept.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	storageKeys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	cutoff := c.calendar.DaysBefore(RetentionDays)

	var expired []string
	for _, storageKey := range storageKeys {
		key, ok := ParseKey(storageKey)
		if !ok {
			continue
		}

		switch k := key.(type) {
		case ObservationKey:
			if k.Date < cutoff {
				expired = append(expired, storageKey)
			}
		case RouteMetadataKey, LastRefreshKey, SchemaVersionKey:
			// reserved
		}
	}

	if len(expired) == 0 {
		return 0, nil
	}

	if err := c.store.Delete(ctx, expired...); err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}

	log.Info().Int("removed", len(expired)).Str("cutoff", cutoff).Msg("Swept expired observations")

	return len(expired), nil
}

// EnsureVersion clears the whole cache when it was written by a different
// build and records the running version. It reports whether a reset happened.
func (c *Cache) EnsureVersion(ctx context.Context, version string) (bool, error) {
	stored, err := c.store.Get(ctx, SchemaVersionKey{}.StorageKey())
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return false, fmt.Errorf("read schema version: %w", err)
	}

	if err == nil && stored == version {
		return false, nil
	}

	if err := c.Reset(ctx, version); err != nil {
		return false, err
	}

	log.Info().Str("previous", stored).Str("version", version).Msg("Cache version changed, cleared all entries")

	return true, nil
}

// Reset clears every entry and writes the version marker
func (c *Cache) Reset(ctx context.Context, version string) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if err := c.store.Set(ctx, SchemaVersionKey{}.StorageKey(), version); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	return nil
}

func (c *Cache) RouteSnapshot(ctx context.Context) (*trains.RouteSnapshot, bool) {
	stored, err := c.store.Get(ctx, RouteMetadataKey{}.StorageKey())
	if err != nil {
		return nil, false
	}

	var snapshot trains.RouteSnapshot
	if err := json.Unmarshal([]byte(stored), &snapshot); err != nil {
		log.Debug().Err(err).Msg("Ignoring malformed route snapshot")
		return nil, false
	}

	return &snapshot, true
}

func (c *Cache) SetRouteSnapshot(ctx context.Context, snapshot *trains.RouteSnapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode route snapshot: %w", err)
	}

	return c.store.Set(ctx, RouteMetadataKey{}.StorageKey(), string(encoded))
}

// LastRefreshDate returns the date of the last successful route refresh or ""
func (c *Cache) LastRefreshDate(ctx context.Context) string {
	stored, err := c.store.Get(ctx, LastRefreshKey{}.StorageKey())
	if err != nil {
		return ""
	}
	return stored
}

func (c *Cache) SetLastRefreshDate(ctx context.Context, date string) error {
	return c.store.Set(ctx, LastRefreshKey{}.StorageKey(), date)
}
