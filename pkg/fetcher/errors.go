package fetcher

import (
	"errors"
	"fmt"
)

// ErrAllFetchesFailed is returned when every planned call failed and neither
// the fetches nor the cache produced any observation. Retrying is safe.
var ErrAllFetchesFailed = errors.New("failed to fetch train data, please try again")

// ErrSuperseded is returned by an invocation that a newer one replaced
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// BudgetExceededError rejects a request before any network activity
type BudgetExceededError struct {
	Needed  int
	Ceiling int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("too many API calls needed: %d (maximum %d), narrow the date range", e.Needed, e.Ceiling)
}

// FetchError is a single failed remote call. It never aborts sibling calls.
type FetchError struct {
	Date        string
	TrainNumber int
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch train %d on %s: %v", e.TrainNumber, e.Date, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
