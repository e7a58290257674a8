package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotline/booking-core/internal/apperr"
)

var (
	ErrBusinessNotFound     = apperr.New(apperr.NotFound, "business not found")
	ErrServiceNotFound      = apperr.New(apperr.NotFound, "service not found")
	ErrPractitionerNotFound = apperr.New(apperr.NotFound, "practitioner not found")
	ErrBookingNotFound      = apperr.New(apperr.NotFound, "booking not found")
)

func errInvalidWeekday(weekday int) error {
	return apperr.Newf(apperr.Validation, "invalid weekday %d", weekday)
}

func errInvalidWindow(weekday time.Weekday, w TimeWindow) error {
	return apperr.Newf(apperr.Validation, "invalid window %s-%s on %s", w.Start, w.End, weekday)
}

// Repository contains all DB interactions the availability engine needs.
// Availability and booking data are owned by external collaborators;
// everything here is read-only except the weekly-window bulk replace
// and the booking cancellation that feeds the waitlist trigger.
type Repository interface {
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*Service, error)
	GetPractitioner(ctx context.Context, businessID, practitionerID uuid.UUID) (*Practitioner, error)

	// ListCapablePractitioners returns the practitioners able to perform
	// the service, bookable or not; the slot generator filters.
	ListCapablePractitioners(ctx context.Context, businessID, serviceID uuid.UUID) ([]Practitioner, error)
	CanPerform(ctx context.Context, practitionerID, serviceID uuid.UUID) (bool, error)

	ListWeeklyWindows(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID) (map[uuid.UUID]WeeklySchedule, error)
	ReplaceWeeklyWindows(ctx context.Context, businessID, practitionerID uuid.UUID, weekly WeeklySchedule) error

	ListExceptions(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to Date) (map[uuid.UUID][]AvailabilityException, error)

	// ListBusyBookings returns pending/confirmed bookings as occupied
	// intervals, keyed by practitioner.
	ListBusyBookings(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]BusyBlock, error)

	GetBooking(ctx context.Context, businessID, bookingID uuid.UUID) (*Booking, error)

	// CancelBooking flips a pending/confirmed booking to cancelled.
	// Returns ErrBookingNotFound when the booking does not exist;
	// returns the booking unchanged when it was already cancelled so a
	// retried trigger can re-run waitlist processing idempotently.
	CancelBooking(ctx context.Context, businessID, bookingID uuid.UUID) (*Booking, error)
}

// BusyFeed is the external-calendar collaborator. Implementations may
// fail; the aggregator treats a failure as an empty source for that
// practitioner and never lets it break the slot query.
type BusyFeed interface {
	BusyBlocks(ctx context.Context, businessID, practitionerID uuid.UUID, from, to time.Time) ([]BusyBlock, error)
}
