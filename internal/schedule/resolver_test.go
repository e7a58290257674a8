package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func window(startHour, startMin, endHour, endMin int) TimeWindow {
	return TimeWindow{Start: NewTimeOfDay(startHour, startMin), End: NewTimeOfDay(endHour, endMin)}
}

func TestResolveDay_WeeklyPattern(t *testing.T) {
	// 2025-06-02 is a Monday.
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{
		time.Monday:  {window(9, 0, 12, 0), window(13, 0, 17, 0)},
		time.Tuesday: {window(8, 0, 16, 0)},
	}

	got := ResolveDay(weekly, nil, date)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if got[0] != window(9, 0, 12, 0) || got[1] != window(13, 0, 17, 0) {
		t.Fatalf("unexpected windows: %v", got)
	}
}

func TestResolveDay_NoWeeklyWindowsIsClosed(t *testing.T) {
	date := mustDate(t, "2025-06-01") // Sunday
	weekly := WeeklySchedule{time.Monday: {window(9, 0, 17, 0)}}

	if got := ResolveDay(weekly, nil, date); got != nil {
		t.Fatalf("expected closed day, got %v", got)
	}
}

func TestResolveDay_ClosedExceptionRemovesDay(t *testing.T) {
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{time.Monday: {window(9, 0, 17, 0)}}
	exceptions := []AvailabilityException{
		{ID: uuid.New(), Date: date, Type: ExceptionClosed},
	}

	if got := ResolveDay(weekly, exceptions, date); got != nil {
		t.Fatalf("closed exception must remove the day, got %v", got)
	}
}

func TestResolveDay_CustomExceptionReplacesWeekly(t *testing.T) {
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{time.Monday: {window(9, 0, 12, 0), window(13, 0, 17, 0)}}
	custom := window(14, 0, 16, 0)
	exceptions := []AvailabilityException{
		{ID: uuid.New(), Date: date, Type: ExceptionCustom, Window: &custom},
	}

	got := ResolveDay(weekly, exceptions, date)
	if len(got) != 1 {
		t.Fatalf("custom exception must replace, not merge; got %v", got)
	}
	if got[0] != custom {
		t.Fatalf("expected %v, got %v", custom, got[0])
	}
}

func TestResolveDay_ExceptionOnOtherDateIgnored(t *testing.T) {
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{time.Monday: {window(9, 0, 17, 0)}}
	exceptions := []AvailabilityException{
		{ID: uuid.New(), Date: mustDate(t, "2025-06-09"), Type: ExceptionClosed},
	}

	got := ResolveDay(weekly, exceptions, date)
	if len(got) != 1 {
		t.Fatalf("exception for another date must not apply, got %v", got)
	}
}

func TestResolveDay_DuplicateExceptionsLatestWins(t *testing.T) {
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{time.Monday: {window(9, 0, 17, 0)}}
	custom := window(10, 0, 11, 0)
	older := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	exceptions := []AvailabilityException{
		{ID: uuid.New(), Date: date, Type: ExceptionClosed, CreatedAt: older},
		{ID: uuid.New(), Date: date, Type: ExceptionCustom, Window: &custom, CreatedAt: newer},
	}

	got := ResolveDay(weekly, exceptions, date)
	if len(got) != 1 || got[0] != custom {
		t.Fatalf("most recently created exception must win, got %v", got)
	}
}

func TestResolveDay_OverlappingWeeklyWindowsKeptAsIs(t *testing.T) {
	date := mustDate(t, "2025-06-02")
	weekly := WeeklySchedule{
		time.Monday: {window(9, 0, 12, 0), window(11, 0, 14, 0)},
	}

	got := ResolveDay(weekly, nil, date)
	if len(got) != 2 {
		t.Fatalf("overlapping windows must not be merged, got %v", got)
	}
}

func TestWeeklyScheduleValidate(t *testing.T) {
	cases := []struct {
		name    string
		weekly  WeeklySchedule
		wantErr bool
	}{
		{"valid", WeeklySchedule{time.Monday: {window(9, 0, 17, 0)}}, false},
		{"empty", WeeklySchedule{}, false},
		{"inverted window", WeeklySchedule{time.Monday: {window(17, 0, 9, 0)}}, true},
		{"zero-length window", WeeklySchedule{time.Monday: {window(9, 0, 9, 0)}}, true},
		{"bad weekday", WeeklySchedule{time.Weekday(9): {window(9, 0, 17, 0)}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.weekly.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tod.String() != "09:30" {
		t.Fatalf("round trip: got %q", tod.String())
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatal("expected error for hour out of range")
	}
	if _, err := ParseTimeOfDay("oops"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
