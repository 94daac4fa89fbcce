package stats

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/trains"
)

type csvRow struct {
	Date               string `csv:"date"`
	Day                string `csv:"day"`
	TrainNumber        int    `csv:"train_number"`
	TrainType          string `csv:"train_type"`
	Status             string `csv:"status"`
	DelayMinutes       int    `csv:"delay_minutes"`
	ScheduledDeparture string `csv:"scheduled_departure"`
	ActualDeparture    string `csv:"actual_departure"`
	ScheduledArrival   string `csv:"scheduled_arrival"`
	ActualArrival      string `csv:"actual_arrival"`
}

// WriteCSV writes one row per observation with times in local wall clock
func WriteCSV(w io.Writer, cal *calendar.Calendar, observations []*trains.Observation) error {
	rows := make([]*csvRow, 0, len(observations))

	localTime := func(timestamp *string) string {
		if timestamp == nil {
			return ""
		}
		return cal.FormatTime(*timestamp)
	}

	for _, observation := range observations {
		rows = append(rows, &csvRow{
			Date:               observation.Date,
			Day:                cal.FormatDate(observation.Date),
			TrainNumber:        observation.TrainNumber,
			TrainType:          observation.TrainType,
			Status:             string(observation.Status),
			DelayMinutes:       observation.DelayMinutes,
			ScheduledDeparture: localTime(&observation.ScheduledDeparture),
			ActualDeparture:    localTime(observation.ActualDeparture),
			ScheduledArrival:   localTime(&observation.ScheduledArrival),
			ActualArrival:      localTime(observation.ActualArrival),
		})
	}

	return gocsv.Marshal(rows, w)
}
