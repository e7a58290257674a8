package schedule

// ResolveDay turns a practitioner's recurring weekly pattern plus any
// date-specific exceptions into the open windows for one date.
//
// A closed exception removes the day. A custom exception replaces the
// weekly pattern for the date with exactly its own window; it does not
// merge. With no exception, the weekday's recurring windows apply as
// stored, unmerged. A day with no windows is implicitly closed (nil).
func ResolveDay(weekly WeeklySchedule, exceptions []AvailabilityException, date Date) []TimeWindow {
	if ex := exceptionFor(exceptions, date); ex != nil {
		switch ex.Type {
		case ExceptionClosed:
			return nil
		case ExceptionCustom:
			if ex.Window == nil {
				return nil
			}
			return []TimeWindow{*ex.Window}
		}
	}

	windows := weekly[date.Weekday()]
	if len(windows) == 0 {
		return nil
	}
	out := make([]TimeWindow, len(windows))
	copy(out, windows)
	return out
}

// exceptionFor picks the exception applying to date. The store does not
// enforce one exception per (practitioner, date); when duplicates exist
// the most recently created one wins.
func exceptionFor(exceptions []AvailabilityException, date Date) *AvailabilityException {
	var picked *AvailabilityException
	for i := range exceptions {
		ex := &exceptions[i]
		if !ex.Date.Equal(date) {
			continue
		}
		if picked == nil || ex.CreatedAt.After(picked.CreatedAt) {
			picked = ex
		}
	}
	return picked
}
