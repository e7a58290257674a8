package schedule

import (
	"fmt"
	"time"

	"github.com/slotline/booking-core/internal/apperr"
)

// TimeOfDay is a clock time within a civil day, in minutes from
// midnight. It carries no date and no zone; combine it with a Date and
// a location via At to get an instant.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, apperr.Newf(apperr.Validation, "invalid time of day %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, apperr.Newf(apperr.Validation, "time of day out of range %q", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// At resolves the time of day on a concrete date in loc. time.Date
// applies the UTC offset in force on that date, so dates on either
// side of a DST transition resolve with their own offsets.
func (t TimeOfDay) At(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

// TimeWindow is a half-open [Start, End) range within one day.
type TimeWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (w TimeWindow) Valid() bool {
	return w.Start >= 0 && w.End > w.Start && w.End <= NewTimeOfDay(24, 0)
}

// Date is a civil calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, apperr.Newf(apperr.Validation, "invalid date %q", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) Next() Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, time.UTC))
}

func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

func (d Date) Equal(o Date) bool { return d == o }
