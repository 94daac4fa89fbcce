package calendar

import (
	"fmt"
	"time"

	_ "time/tzdata"
)

const DateLayout = "2006-01-02"

const DefaultTimezone = "Europe/Helsinki"

var finnishWeekdays = map[time.Weekday]string{
	time.Monday:    "ma",
	time.Tuesday:   "ti",
	time.Wednesday: "ke",
	time.Thursday:  "to",
	time.Friday:    "pe",
	time.Saturday:  "la",
	time.Sunday:    "su",
}

// Calendar resolves dates in the operating region rather than in the
// timezone of the machine running the code.
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

func New(timezone string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}

	return &Calendar{
		Location: location,
		Now:      time.Now,
	}, nil
}

// Fixed returns a calendar frozen at the given instant
func Fixed(location *time.Location, now time.Time) *Calendar {
	return &Calendar{
		Location: location,
		Now: func() time.Time {
			return now
		},
	}
}

func (c *Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.Location)
	}
	return c.Now().In(c.Location)
}

func (c *Calendar) Today() string {
	return c.now().Format(DateLayout)
}

func (c *Calendar) IsToday(date string) bool {
	return date == c.Today()
}

// ParseDate reads a YYYY-MM-DD date as midnight in the calendar's location.
func (c *Calendar) ParseDate(date string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, date, c.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return parsed, nil
}

// BusinessDaysInRange lists Monday to Friday dates between start and end
// inclusive, oldest first. Dates after today are never returned.
func (c *Calendar) BusinessDaysInRange(start string, end string) ([]string, error) {
	startDate, err := c.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDate, err := c.ParseDate(end)
	if err != nil {
		return nil, err
	}

	today := c.Today()
	days := []string{}

	for current := startDate; !current.After(endDate); current = current.AddDate(0, 0, 1) {
		weekday := current.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			continue
		}

		date := current.Format(DateLayout)
		if date > today {
			break
		}

		days = append(days, date)
	}

	return days, nil
}

// DaysBefore returns the date n calendar days before today.
func (c *Calendar) DaysBefore(n int) string {
	return c.now().AddDate(0, 0, -n).Format(DateLayout)
}

// DefaultDateRange covers the last 14 calendar days including today.
func (c *Calendar) DefaultDateRange() (string, string) {
	return c.DaysBefore(13), c.Today()
}

func (c *Calendar) IsEndDateInFuture(end string) bool {
	return end > c.Today()
}

// FormatTime converts a wire timestamp into local 24h wall clock time,
// "2026-01-27T06:20:00Z" becomes "08:20". Unparseable input is returned as is.
func (c *Calendar) FormatTime(timestamp string) string {
	parsed, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return parsed.In(c.Location).Format("15:04")
}

// FormatDate renders a date as the Finnish weekday abbreviation and day.month,
// "2026-01-27" becomes "ti 27.1.".
func (c *Calendar) FormatDate(date string) string {
	parsed, err := c.ParseDate(date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s %d.%d.", finnishWeekdays[parsed.Weekday()], parsed.Day(), int(parsed.Month()))
}
