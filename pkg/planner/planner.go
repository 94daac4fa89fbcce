package planner

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/recordcache"
	"github.com/travigo/punctuality/pkg/trains"
)

// DefaultMaxAPICalls is the most remote calls a single fetch may need
const DefaultMaxAPICalls = 30

// MaxRangeDays bounds the calendar span of a single request
const MaxRangeDays = 366

var ErrRangeTooLong = errors.New("date range too long")

// Call is a single remote lookup for one train on one date
type Call struct {
	Date        string `json:"date"`
	TrainNumber int    `json:"trainNumber"`
}

// Plan is the acquisition plan for one request. It is never persisted.
type Plan struct {
	BusinessDays []string              `json:"businessDays"`
	NeededCalls  int                   `json:"neededCalls"`
	Calls        []Call                `json:"calls"`
	Cached       []*trains.Observation `json:"-"`

	// Truncated plans stopped reading the cache once over the ceiling, so
	// NeededCalls assumes no further cache hits
	Truncated bool `json:"truncated"`
}

func (p *Plan) Exceeds(ceiling int) bool {
	return p.NeededCalls > ceiling
}

// Planner decides which (date, train) pairs need a remote call. Today always
// does; any other business day does when the cache has no entry for it.
type Planner struct {
	Cache *recordcache.Cache
}

func New(cache *recordcache.Cache) *Planner {
	return &Planner{Cache: cache}
}

// Plan reads the cache for every (business day, train) of the range
func (p *Planner) Plan(ctx context.Context, start string, end string, trainNumbers []int) (*Plan, error) {
	return p.PlanWithin(ctx, start, end, trainNumbers, 0)
}

// PlanWithin stops reading the cache as soon as more than ceiling calls are
// needed. The rest of the range then counts as uncached and the plan is
// marked Truncated. A ceiling of zero or less reads every entry.
func (p *Planner) PlanWithin(ctx context.Context, start string, end string, trainNumbers []int, ceiling int) (*Plan, error) {
	cal := p.Cache.Calendar()

	if err := ValidateRange(cal, start, end); err != nil {
		return nil, err
	}

	days, err := cal.BusinessDaysInRange(start, end)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		BusinessDays: days,
		Calls:        []Call{},
		Cached:       []*trains.Observation{},
	}

	for _, date := range days {
		for _, trainNumber := range trainNumbers {
			call := Call{Date: date, TrainNumber: trainNumber}

			if plan.Truncated || cal.IsToday(date) {
				plan.Calls = append(plan.Calls, call)
				continue
			}

			if observation, ok := p.Cache.Get(ctx, date, trainNumber); ok {
				plan.Cached = append(plan.Cached, observation)
				continue
			}

			plan.Calls = append(plan.Calls, call)

			if ceiling > 0 && len(plan.Calls) > ceiling {
				plan.Truncated = true
			}
		}
	}

	plan.NeededCalls = len(plan.Calls)

	return plan, nil
}

// ValidateRange rejects ranges spanning more than MaxRangeDays
func ValidateRange(cal *calendar.Calendar, start string, end string) error {
	startDate, err := cal.ParseDate(start)
	if err != nil {
		return err
	}
	endDate, err := cal.ParseDate(end)
	if err != nil {
		return err
	}

	// rounded as DST changes make some days 23 or 25 hours long
	span := int(math.Round(endDate.Sub(startDate).Hours() / 24))
	if span > MaxRangeDays {
		return fmt.Errorf("%w: %s to %s is longer than %d days", ErrRangeTooLong, start, end, MaxRangeDays)
	}

	return nil
}

func (p *Planner) NeededCallCount(ctx context.Context, start string, end string, trainNumbers []int) (int, error) {
	plan, err := p.Plan(ctx, start, end, trainNumbers)
	if err != nil {
		return 0, err
	}
	return plan.NeededCalls, nil
}

func (p *Planner) CallsNeeded(ctx context.Context, start string, end string, trainNumbers []int) ([]Call, error) {
	plan, err := p.Plan(ctx, start, end, trainNumbers)
	if err != nil {
		return nil, err
	}
	return plan.Calls, nil
}

// CachedObservations lists every cache hit over the same date and train grid
func (p *Planner) CachedObservations(ctx context.Context, start string, end string, trainNumbers []int) ([]*trains.Observation, error) {
	plan, err := p.Plan(ctx, start, end, trainNumbers)
	if err != nil {
		return nil, err
	}
	return plan.Cached, nil
}
