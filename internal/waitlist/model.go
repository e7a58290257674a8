package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusOffered   Status = "offered"
	StatusBooked    Status = "booked"
	StatusExpired   Status = "expired"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further automatic transition applies.
func (s Status) Terminal() bool {
	return s == StatusBooked || s == StatusCancelled
}

type TimePreference string

const (
	PreferAny       TimePreference = "any"
	PreferMorning   TimePreference = "morning"
	PreferAfternoon TimePreference = "afternoon"
)

type Entry struct {
	ID                uuid.UUID
	BusinessID        uuid.UUID
	PractitionerID    uuid.UUID
	ServiceID         uuid.UUID
	ClientID          uuid.UUID
	PreferredWeekdays []time.Weekday
	TimePreference    TimePreference
	Priority          int
	Status            Status
	Notes             string

	// Offer fields, set while an offer is (or was) outstanding.
	OfferToken     *string
	OfferStart     *time.Time
	OfferEnd       *time.Time
	OfferSentAt    *time.Time
	OfferExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CancellationEvent is the trigger input: a booking freed this interval.
type CancellationEvent struct {
	BookingID      uuid.UUID
	BusinessID     uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
	Start          time.Time
	End            time.Time
}

// Offer is the outcome of a successful waiting→offered transition.
type Offer struct {
	OfferedTo      uuid.UUID // entry ID
	ClientID       uuid.UUID
	Token          string
	Start          time.Time
	End            time.Time
	ExpiresAt      time.Time
	RemainingQueue int
}

// MatchQuery selects waiting entries whose preferences fit a freed
// interval.
type MatchQuery struct {
	BusinessID     uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
	Weekday        time.Weekday
	Bucket         TimePreference // morning or afternoon
}

type EventLog struct {
	ID        int64
	EventType string
	EntryID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
