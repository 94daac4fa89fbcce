package trains

type TimeTableRowType string

const (
	TimeTableRowDeparture TimeTableRowType = "DEPARTURE"
	TimeTableRowArrival   TimeTableRowType = "ARRIVAL"
)

// TimeTableRow is a single stop event as returned by the Digitraffic REST API
type TimeTableRow struct {
	StationShortCode    string           `json:"stationShortCode"`
	Type                TimeTableRowType `json:"type"`
	ScheduledTime       string           `json:"scheduledTime"`
	ActualTime          *string          `json:"actualTime,omitempty"`
	DifferenceInMinutes *int             `json:"differenceInMinutes,omitempty"`
	CommercialStop      bool             `json:"commercialStop"`
	Cancelled           bool             `json:"cancelled"`
}

// TrainResponse is one element of the /trains/{date}/{number} response array
type TrainResponse struct {
	TrainNumber       int            `json:"trainNumber"`
	DepartureDate     string         `json:"departureDate"`
	TrainType         string         `json:"trainType"`
	OperatorShortCode string         `json:"operatorShortCode"`
	RunningCurrently  bool           `json:"runningCurrently"`
	Cancelled         bool           `json:"cancelled"`
	TimeTableRows     []TimeTableRow `json:"timeTableRows"`
}

func (r *TrainResponse) findRow(rowType TimeTableRowType, station string) *TimeTableRow {
	for i := range r.TimeTableRows {
		row := &r.TimeTableRows[i]
		if row.Type == rowType && row.StationShortCode == station {
			return row
		}
	}
	return nil
}

// HasStation reports whether any row of the train touches the station
func (r *TrainResponse) HasStation(station string) bool {
	for _, row := range r.TimeTableRows {
		if row.StationShortCode == station {
			return true
		}
	}
	return false
}

// LegBetween works out which way the train runs between two stations
func (r *TrainResponse) LegBetween(a string, b string) (Leg, bool) {
	if r.findRow(TimeTableRowDeparture, a) != nil && r.findRow(TimeTableRowArrival, b) != nil {
		return Leg{From: a, To: b, Direction: DirectionOutbound}, true
	}
	if r.findRow(TimeTableRowDeparture, b) != nil && r.findRow(TimeTableRowArrival, a) != nil {
		return Leg{From: b, To: a, Direction: DirectionReturn}, true
	}
	return Leg{}, false
}

// ParseResponse turns a response into an Observation for the leg between
// from and to. It returns nil when the train does not serve both stations.
func ParseResponse(response *TrainResponse, from string, to string) *Observation {
	if response == nil {
		return nil
	}

	departureRow := response.findRow(TimeTableRowDeparture, from)
	arrivalRow := response.findRow(TimeTableRowArrival, to)
	if departureRow == nil || arrivalRow == nil {
		return nil
	}

	cancelled := response.Cancelled || departureRow.Cancelled

	delayMinutes := 0
	if !cancelled && departureRow.DifferenceInMinutes != nil {
		delayMinutes = *departureRow.DifferenceInMinutes
	}

	observation := &Observation{
		Date:               response.DepartureDate,
		TrainNumber:        response.TrainNumber,
		TrainType:          response.TrainType,
		Cancelled:          cancelled,
		ScheduledDeparture: departureRow.ScheduledTime,
		ScheduledArrival:   arrivalRow.ScheduledTime,
		DelayMinutes:       delayMinutes,
	}

	if !cancelled {
		observation.ActualDeparture = departureRow.ActualTime
		observation.ActualArrival = arrivalRow.ActualTime
	}

	observation.Reclassify()

	return observation
}
