package fetcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/punctuality/pkg/planner"
	"github.com/travigo/punctuality/pkg/trains"
	"golang.org/x/exp/slices"
)

const DefaultMaxConcurrency = 10

type State string

const (
	StateIdle      State = "IDLE"
	StatePlanning  State = "PLANNING"
	StateRejected  State = "REJECTED"
	StateFetching  State = "FETCHING"
	StateMerging   State = "MERGING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// ObservationSource performs the remote lookup of one train on one date. A
// nil observation with a nil error means there is no data for it.
type ObservationSource interface {
	FetchObservation(ctx context.Context, date string, trainNumber int, leg trains.Leg) (*trains.Observation, error)
}

type Result struct {
	InvocationID uint64                `json:"invocationId"`
	State        State                 `json:"state"`
	Data         []*trains.Observation `json:"data"`
	TooManyCalls bool                  `json:"tooManyCalls"`
	NeededCalls  int                   `json:"neededCalls"`
	// Attempted separates a rejected request from one never made
	Attempted bool `json:"attempted"`

	Failures []*FetchError `json:"-"`
}

type outcome struct {
	observation *trains.Observation
	err         error
}

// Orchestrator runs the plan for a request: rejects it when it needs too many
// calls, otherwise fetches every planned pair concurrently, caches what comes
// back and merges it with what was already cached.
type Orchestrator struct {
	Planner *planner.Planner
	Source  ObservationSource

	// Outbound is the leg of the first train of a pair, the second train runs
	// the reverse leg
	Outbound trains.Leg

	MaxAPICalls    int
	MaxConcurrency int

	invocation atomic.Uint64

	sessionsMutex sync.Mutex
	sessions      map[string]*session

	stateMutex sync.Mutex
	state      State
}

// DefaultSession is the session PlanAndFetch runs in
const DefaultSession = "default"

// session is the invocation currently in flight for one caller
type session struct {
	id     uint64
	cancel context.CancelFunc
}

func New(p *planner.Planner, source ObservationSource, outbound trains.Leg) *Orchestrator {
	return &Orchestrator{
		Planner:        p,
		Source:         source,
		Outbound:       outbound,
		MaxAPICalls:    planner.DefaultMaxAPICalls,
		MaxConcurrency: DefaultMaxConcurrency,
		sessions:       map[string]*session{},
		state:          StateIdle,
	}
}

// State is the state of the most recent invocation of the default session
func (o *Orchestrator) State() State {
	o.stateMutex.Lock()
	defer o.stateMutex.Unlock()

	return o.state
}

func (o *Orchestrator) setState(key string, id uint64, state State) {
	if key != DefaultSession {
		return
	}

	o.stateMutex.Lock()
	defer o.stateMutex.Unlock()

	if o.isActive(key, id) {
		o.state = state
	}
}

func (o *Orchestrator) isActive(key string, id uint64) bool {
	o.sessionsMutex.Lock()
	defer o.sessionsMutex.Unlock()

	active, ok := o.sessions[key]
	return ok && active.id == id
}

// begin starts a new invocation in the session and cancels the one in
// flight there, if any. Other sessions are left alone.
func (o *Orchestrator) begin(ctx context.Context, key string) (uint64, context.Context, context.CancelFunc) {
	o.sessionsMutex.Lock()
	defer o.sessionsMutex.Unlock()

	id := o.invocation.Add(1)
	invocationCtx, cancel := context.WithCancel(ctx)

	// the old invocation is already inactive once its context ends
	previous := o.sessions[key]
	o.sessions[key] = &session{id: id, cancel: cancel}

	if previous != nil {
		previous.cancel()
	}

	return id, invocationCtx, cancel
}

// finish forgets the session unless a newer invocation took it over
func (o *Orchestrator) finish(key string, id uint64) {
	o.sessionsMutex.Lock()
	defer o.sessionsMutex.Unlock()

	if active, ok := o.sessions[key]; ok && active.id == id {
		delete(o.sessions, key)
	}
}

func (o *Orchestrator) legFor(pair trains.TrainPair, trainNumber int) trains.Leg {
	if pair.Index(trainNumber) == 1 {
		return o.Outbound.Reverse()
	}
	return o.Outbound
}

// PlanAndFetch returns the observations for both trains over the date range.
// Partial failures are not reported as errors. A *BudgetExceededError comes
// with a populated Result, ErrAllFetchesFailed with an empty one.
func (o *Orchestrator) PlanAndFetch(ctx context.Context, start string, end string, pair trains.TrainPair) (*Result, error) {
	return o.PlanAndFetchSession(ctx, DefaultSession, start, end, pair)
}

// PlanAndFetchSession is PlanAndFetch where only a newer invocation with the
// same session key supersedes this one
func (o *Orchestrator) PlanAndFetchSession(ctx context.Context, key string, start string, end string, pair trains.TrainPair) (*Result, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}

	id, ctx, cancel := o.begin(ctx, key)
	defer o.finish(key, id)
	defer cancel()

	logger := log.With().Uint64("invocation", id).Str("session", key).Str("start", start).Str("end", end).Ints("trains", pair.Numbers()).Logger()

	o.setState(key, id, StatePlanning)

	plan, err := o.Planner.PlanWithin(ctx, start, end, pair.Numbers(), o.MaxAPICalls)
	if err != nil {
		o.setState(key, id, StateIdle)
		return nil, fmt.Errorf("plan fetch: %w", err)
	}

	result := &Result{
		InvocationID: id,
		Data:         []*trains.Observation{},
		NeededCalls:  plan.NeededCalls,
		Attempted:    true,
	}

	if plan.Exceeds(o.MaxAPICalls) {
		logger.Info().Int("needed", plan.NeededCalls).Int("ceiling", o.MaxAPICalls).Msg("Rejecting fetch, too many API calls needed")

		result.TooManyCalls = true
		result.State = StateRejected
		o.setState(key, id, StateRejected)

		return result, &BudgetExceededError{Needed: plan.NeededCalls, Ceiling: o.MaxAPICalls}
	}

	o.setState(key, id, StateFetching)
	logger.Debug().Int("calls", len(plan.Calls)).Int("cached", len(plan.Cached)).Msg("Fetching planned calls")

	outcomes := make([]outcome, len(plan.Calls))

	p := pool.New().WithMaxGoroutines(max(1, o.MaxConcurrency))
	for i, call := range plan.Calls {
		i, call := i, call
		p.Go(func() {
			outcomes[i] = o.fetchOne(ctx, key, id, pair, call)
		})
	}
	p.Wait()

	if !o.isActive(key, id) {
		logger.Debug().Msg("Discarding results of superseded fetch")
		return nil, ErrSuperseded
	}

	o.setState(key, id, StateMerging)

	var fetched []*trains.Observation
	for i, outcome := range outcomes {
		if outcome.err != nil {
			call := plan.Calls[i]
			fetchError := &FetchError{Date: call.Date, TrainNumber: call.TrainNumber, Err: outcome.err}
			result.Failures = append(result.Failures, fetchError)

			logger.Warn().Err(outcome.err).Str("date", call.Date).Int("trainNumber", call.TrainNumber).Msg("Train fetch failed")
			continue
		}

		if outcome.observation != nil {
			fetched = append(fetched, outcome.observation)
		}
	}

	result.Data = merge(fetched, plan.Cached, pair)

	if len(plan.Calls) > 0 && len(result.Failures) == len(plan.Calls) && len(result.Data) == 0 {
		result.State = StateFailed
		o.setState(key, id, StateFailed)

		failures := make([]error, 0, len(result.Failures))
		for _, failure := range result.Failures {
			failures = append(failures, failure)
		}

		return result, fmt.Errorf("%w: %w", ErrAllFetchesFailed, errors.Join(failures...))
	}

	result.State = StateSucceeded
	o.setState(key, id, StateSucceeded)

	logger.Info().
		Int("fetched", len(fetched)).
		Int("cached", len(plan.Cached)).
		Int("failed", len(result.Failures)).
		Msg("Fetch complete")

	return result, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, key string, id uint64, pair trains.TrainPair, call planner.Call) outcome {
	observation, err := o.Source.FetchObservation(ctx, call.Date, call.TrainNumber, o.legFor(pair, call.TrainNumber))
	if err != nil {
		return outcome{err: err}
	}

	if observation == nil {
		return outcome{}
	}

	if o.isActive(key, id) {
		if err := o.Planner.Cache.Put(ctx, call.Date, call.TrainNumber, observation); err != nil {
			log.Warn().Err(err).Str("date", call.Date).Int("trainNumber", call.TrainNumber).Msg("Failed to cache observation")
		}
	}

	return outcome{observation: observation}
}

type observationKey struct {
	date        string
	trainNumber int
}

// merge combines fetched and cached observations, fetched ones winning on
// the same (date, train), newest date first.
func merge(fetched []*trains.Observation, cached []*trains.Observation, pair trains.TrainPair) []*trains.Observation {
	seen := map[observationKey]bool{}
	merged := make([]*trains.Observation, 0, len(fetched)+len(cached))

	for _, group := range [][]*trains.Observation{fetched, cached} {
		for _, observation := range group {
			key := observationKey{date: observation.Date, trainNumber: observation.TrainNumber}
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, observation)
		}
	}

	slices.SortStableFunc(merged, func(a, b *trains.Observation) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(pair.Index(a.TrainNumber), pair.Index(b.TrainNumber))
	})

	return merged
}
