package routesync

import (
	"cmp"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/punctuality/pkg/recordcache"
	"github.com/travigo/punctuality/pkg/trains"
	"golang.org/x/exp/slices"
)

// RouteSource lists the trains running between two stations on a date
type RouteSource interface {
	FetchRoute(ctx context.Context, date string, from string, to string) ([]trains.RouteTrain, error)
}

// Refresher keeps the route snapshot up to date at most once per calendar day
type Refresher struct {
	Cache  *recordcache.Cache
	Source RouteSource
	Route  trains.Leg
}

func New(cache *recordcache.Cache, source RouteSource, route trains.Leg) *Refresher {
	return &Refresher{
		Cache:  cache,
		Source: source,
		Route:  route,
	}
}

// RefreshOnce fetches today's route trains unless that already succeeded
// today. The refresh marker is only written once the snapshot is stored, and
// a successful refresh is followed by a cache sweep. It reports whether a
// refresh ran.
func (r *Refresher) RefreshOnce(ctx context.Context) (bool, error) {
	today := r.Cache.Calendar().Today()

	if r.Cache.LastRefreshDate(ctx) == today {
		log.Debug().Str("date", today).Msg("Route already refreshed today")
		return false, nil
	}

	routeTrains, err := r.Source.FetchRoute(ctx, today, r.Route.From, r.Route.To)
	if err != nil {
		return false, fmt.Errorf("fetch route trains: %w", err)
	}

	snapshot := &trains.RouteSnapshot{
		ReferenceDate: today,
		Trains:        routeTrains,
	}

	if err := r.Cache.SetRouteSnapshot(ctx, snapshot); err != nil {
		return false, fmt.Errorf("store route snapshot: %w", err)
	}

	if err := r.Cache.SetLastRefreshDate(ctx, today); err != nil {
		return false, fmt.Errorf("store route refresh date: %w", err)
	}

	log.Info().Str("date", today).Int("trains", len(routeTrains)).Msg("Refreshed route trains")

	if _, err := r.Cache.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired observations")
	}

	return true, nil
}

// Candidates lists the trains of one direction ordered by scheduled departure
func Candidates(snapshot *trains.RouteSnapshot, direction trains.Direction) []trains.RouteTrain {
	candidates := []trains.RouteTrain{}
	if snapshot == nil {
		return candidates
	}

	for _, train := range snapshot.Trains {
		if train.Direction == direction {
			candidates = append(candidates, train)
		}
	}

	slices.SortStableFunc(candidates, func(a, b trains.RouteTrain) int {
		if c := cmp.Compare(a.ScheduledDeparture, b.ScheduledDeparture); c != 0 {
			return c
		}
		return cmp.Compare(a.TrainNumber, b.TrainNumber)
	})

	return candidates
}
