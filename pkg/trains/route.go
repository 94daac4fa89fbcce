package trains

import (
	"fmt"
	"strings"
)

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

// Leg is one direction of the monitored route expressed as station short codes
type Leg struct {
	From      string    `yaml:"from" json:"from"`
	To        string    `yaml:"to" json:"to"`
	Direction Direction `yaml:"-" json:"direction"`
}

func (l Leg) Reverse() Leg {
	return Leg{From: l.To, To: l.From, Direction: DirectionReturn}
}

// TrainConfig describes a tracked train as shown to users
type TrainConfig struct {
	Number        int    `yaml:"number" json:"number"`
	Name          string `yaml:"name" json:"name"`
	From          string `yaml:"from" json:"from"`
	To            string `yaml:"to" json:"to"`
	ScheduledTime string `yaml:"scheduled_time" json:"scheduledTime"`
	Direction     string `yaml:"direction" json:"direction"`
}

// Title formats e.g. "Morning train 8:20 – Lempäälä → Tampere". Names that
// already carry the time and number in brackets are not repeated.
func (t TrainConfig) Title() string {
	if strings.Contains(t.Name, "(") {
		return fmt.Sprintf("%s – %s", t.Name, t.Direction)
	}
	return fmt.Sprintf("%s %s – %s", t.Name, t.ScheduledTime, t.Direction)
}

var DefaultOutbound = TrainConfig{
	Number:        1719,
	Name:          "Morning train",
	From:          "LPÄ",
	To:            "TPE",
	ScheduledTime: "8:20",
	Direction:     "Lempäälä → Tampere",
}

var DefaultReturn = TrainConfig{
	Number:        9700,
	Name:          "Evening train",
	From:          "TPE",
	To:            "LPÄ",
	ScheduledTime: "16:35",
	Direction:     "Tampere → Lempäälä",
}

// RouteTrain is a train running on the monitored route on the reference date
type RouteTrain struct {
	TrainNumber        int          `json:"trainNumber"`
	TrainType          string       `json:"trainType"`
	Direction          Direction    `json:"direction"`
	From               string       `json:"from"`
	To                 string       `json:"to"`
	ScheduledDeparture string       `json:"scheduledDeparture"`
	Observation        *Observation `json:"observation,omitempty"`
}

// RouteSnapshot is the latest route lookup kept as non-expiring metadata
type RouteSnapshot struct {
	ReferenceDate string       `json:"referenceDate"`
	Trains        []RouteTrain `json:"trains"`
}

func (s *RouteSnapshot) TrainNumbers() []int {
	numbers := make([]int, 0, len(s.Trains))
	for _, train := range s.Trains {
		numbers = append(numbers, train.TrainNumber)
	}
	return numbers
}
