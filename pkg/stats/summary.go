package stats

import (
	"cmp"
	"math"

	"github.com/travigo/punctuality/pkg/trains"
	"golang.org/x/exp/slices"
)

type Summary struct {
	OnTimePercent      float64 `json:"onTimePercent"`
	SlightDelayPercent float64 `json:"slightDelayPercent"`
	DelayedPercent     float64 `json:"delayedPercent"`
	CancelledCount     int     `json:"cancelledCount"`
	AverageDelay       float64 `json:"averageDelay"`
	TotalCount         int     `json:"totalCount"`
	OnTimeCount        int     `json:"onTimeCount"`
	SlightDelayCount   int     `json:"slightDelayCount"`
	DelayedCount       int     `json:"delayedCount"`
}

// ComputeSummary counts observations per status. Percentages are of all
// observations including cancelled ones, the average delay leaves cancelled
// trains out and is rounded to one decimal.
func ComputeSummary(observations []*trains.Observation) Summary {
	summary := Summary{TotalCount: len(observations)}
	if summary.TotalCount == 0 {
		return summary
	}

	totalDelay := 0
	runningCount := 0

	for _, observation := range observations {
		switch observation.Status {
		case trains.StatusOnTime:
			summary.OnTimeCount++
		case trains.StatusSlightDelay:
			summary.SlightDelayCount++
		case trains.StatusDelayed:
			summary.DelayedCount++
		case trains.StatusCancelled:
			summary.CancelledCount++
			continue
		}

		runningCount++
		totalDelay += observation.DelayMinutes
	}

	total := float64(summary.TotalCount)
	summary.OnTimePercent = float64(summary.OnTimeCount) / total * 100
	summary.SlightDelayPercent = float64(summary.SlightDelayCount) / total * 100
	summary.DelayedPercent = float64(summary.DelayedCount) / total * 100

	if runningCount > 0 {
		summary.AverageDelay = math.Round(float64(totalDelay)/float64(runningCount)*10) / 10
	}

	return summary
}

func FilterByTrain(observations []*trains.Observation, trainNumber int) []*trains.Observation {
	filtered := []*trains.Observation{}
	for _, observation := range observations {
		if observation.TrainNumber == trainNumber {
			filtered = append(filtered, observation)
		}
	}
	return filtered
}

// SortByDate returns a sorted copy, newest first unless ascending is set
func SortByDate(observations []*trains.Observation, ascending bool) []*trains.Observation {
	sorted := slices.Clone(observations)

	slices.SortStableFunc(sorted, func(a, b *trains.Observation) int {
		if ascending {
			return cmp.Compare(a.Date, b.Date)
		}
		return cmp.Compare(b.Date, a.Date)
	})

	return sorted
}

// SummariesByTrain computes a summary per train number of the pair
func SummariesByTrain(observations []*trains.Observation, pair trains.TrainPair) map[int]Summary {
	summaries := map[int]Summary{}
	for _, trainNumber := range pair {
		summaries[trainNumber] = ComputeSummary(FilterByTrain(observations, trainNumber))
	}
	return summaries
}
