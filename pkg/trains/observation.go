package trains

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTrainPair = errors.New("train pair needs two different positive train numbers")

// Status is derived from the cancelled flag and the departure delay and is
// never persisted as authoritative
type Status string

const (
	StatusOnTime      Status = "ON_TIME"
	StatusSlightDelay Status = "SLIGHT_DELAY"
	StatusDelayed     Status = "DELAYED"
	StatusCancelled   Status = "CANCELLED"
)

const (
	OnTimeThresholdMinutes      = 1
	SlightDelayThresholdMinutes = 5
)

func ClassifyStatus(cancelled bool, delayMinutes int) Status {
	switch {
	case cancelled:
		return StatusCancelled
	case delayMinutes <= OnTimeThresholdMinutes:
		return StatusOnTime
	case delayMinutes <= SlightDelayThresholdMinutes:
		return StatusSlightDelay
	default:
		return StatusDelayed
	}
}

// Observation is one train's actual against scheduled performance on one date
type Observation struct {
	Date        string `json:"date" groups:"basic,detailed"`
	TrainNumber int    `json:"trainNumber" groups:"basic,detailed"`
	TrainType   string `json:"trainType" groups:"basic,detailed"`
	Cancelled   bool   `json:"cancelled" groups:"basic,detailed"`

	ScheduledDeparture string  `json:"scheduledDeparture" groups:"detailed"`
	ActualDeparture    *string `json:"actualDeparture" groups:"detailed"`
	ScheduledArrival   string  `json:"scheduledArrival" groups:"detailed"`
	ActualArrival      *string `json:"actualArrival" groups:"detailed"`

	DelayMinutes int    `json:"delayMinutes" groups:"basic,detailed"`
	Status       Status `json:"status" groups:"basic,detailed"`
}

// Reclassify recomputes Status so that threshold changes apply to old data
func (o *Observation) Reclassify() {
	o.Status = ClassifyStatus(o.Cancelled, o.DelayMinutes)
}

// TrainPair holds the outbound and the return train numbers, in that order
type TrainPair [2]int

func (p TrainPair) Numbers() []int {
	return []int{p[0], p[1]}
}

// Index reports the position of a train number in the pair or -1
func (p TrainPair) Index(trainNumber int) int {
	for i, number := range p {
		if number == trainNumber {
			return i
		}
	}
	return -1
}

func (p TrainPair) Validate() error {
	if p[0] <= 0 || p[1] <= 0 || p[0] == p[1] {
		return ErrInvalidTrainPair
	}
	return nil
}

// ParseTrainPair reads "1719,9700" as outbound and return train numbers
func ParseTrainPair(value string) (TrainPair, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return TrainPair{}, fmt.Errorf("%w: expected two comma separated numbers, got %q", ErrInvalidTrainPair, value)
	}

	var pair TrainPair
	for i, part := range parts {
		number, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return TrainPair{}, fmt.Errorf("%w: %q is not a train number", ErrInvalidTrainPair, part)
		}
		pair[i] = number
	}

	if err := pair.Validate(); err != nil {
		return TrainPair{}, err
	}

	return pair, nil
}
