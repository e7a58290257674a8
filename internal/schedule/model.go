package schedule

import (
	"time"

	"github.com/google/uuid"
)

type WaitlistMode string

const (
	WaitlistOff    WaitlistMode = "off"
	WaitlistManual WaitlistMode = "manual"
	WaitlistAuto   WaitlistMode = "auto"
)

type AppointmentMode string

const (
	ModeInPerson AppointmentMode = "in_person"
	ModeVideo    AppointmentMode = "video"
	ModePhone    AppointmentMode = "phone"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

type ExceptionType string

const (
	ExceptionClosed ExceptionType = "closed"
	ExceptionCustom ExceptionType = "custom"
)

type Business struct {
	ID        uuid.UUID
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Name         string
	Timezone     string
	Bookable     bool
	WaitlistMode WaitlistMode
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Service struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMin     int
	BufferBeforeMin int
	BufferAfterMin  int
	Modes           []AppointmentMode
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TotalBlockMin is the span a booking of this service occupies,
// buffers included.
func (s Service) TotalBlockMin() int {
	return s.BufferBeforeMin + s.DurationMin + s.BufferAfterMin
}

func (s Service) SupportsMode(mode AppointmentMode) bool {
	for _, m := range s.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// WeeklySchedule is the recurring availability pattern. Windows per
// weekday are stored as given; they may be redundant, adjacent, or
// overlapping, and callers must tolerate that.
type WeeklySchedule map[time.Weekday][]TimeWindow

// Validate rejects malformed schedule payloads at the boundary.
func (ws WeeklySchedule) Validate() error {
	for weekday, windows := range ws {
		if weekday < time.Sunday || weekday > time.Saturday {
			return errInvalidWeekday(int(weekday))
		}
		for _, w := range windows {
			if !w.Valid() {
				return errInvalidWindow(weekday, w)
			}
		}
	}
	return nil
}

type AvailabilityException struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	PractitionerID uuid.UUID
	Date           Date
	Type           ExceptionType
	Window         *TimeWindow // set when Type is custom
	CreatedAt      time.Time
}

type Booking struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
	ClientID       uuid.UUID
	StartAt        time.Time
	EndAt          time.Time
	Status         BookingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BusyBlock is an occupied instant-interval. The source (internal
// booking or external calendar) does not matter to slot generation.
type BusyBlock struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses strict half-open interval overlap.
func (b BusyBlock) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// Slot is one bookable candidate for a practitioner, sized to a
// service's buffered duration.
type Slot struct {
	PractitionerID uuid.UUID
	Date           Date
	StartTime      TimeOfDay
	EndTime        TimeOfDay
	StartAt        time.Time
	EndAt          time.Time
}
