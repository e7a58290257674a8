package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotline/booking-core/internal/apperr"
)

var (
	ErrEntryNotFound = apperr.New(apperr.NotFound, "waitlist entry not found")
	ErrOfferNotFound = apperr.New(apperr.NotFound, "offer not found")

	// ErrEntryTransitioned signals a conditional write that matched no
	// row: the entry moved on under a concurrent writer. Callers treat
	// it as a no-op, never as a failure.
	ErrEntryTransitioned = apperr.New(apperr.Conflict, "entry is no longer in the expected status")
)

// Repository contains all DB interactions the offer state machine
// needs. Every status transition is a single conditional UPDATE guarded
// by the entry's current status, so concurrent triggers across process
// instances cannot both win.
type Repository interface {
	CreateEntry(ctx context.Context, e Entry) (*Entry, error)
	GetEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)
	GetEntryByToken(ctx context.Context, token string) (*Entry, error)
	ListEntries(ctx context.Context, businessID uuid.UUID, practitionerID *uuid.UUID, status *Status) ([]Entry, error)

	// ListMatching returns waiting entries matching the query, ordered
	// by priority ascending then created_at ascending.
	ListMatching(ctx context.Context, q MatchQuery) ([]Entry, error)
	CountMatching(ctx context.Context, q MatchQuery) (int, error)

	// OfferEntry performs waiting→offered, recording the offer fields.
	// Returns ErrEntryTransitioned when the entry is no longer waiting.
	OfferEntry(ctx context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error)

	// FindActiveOffer returns the offered entry holding this
	// practitioner's interval with an unexpired TTL, if any.
	FindActiveOffer(ctx context.Context, practitionerID uuid.UUID, start time.Time, now time.Time) (*Entry, error)

	// AcceptOffer performs offered→booked, guarded by token match and
	// an unexpired TTL at write time.
	AcceptOffer(ctx context.Context, token string, now time.Time) (*Entry, error)

	// DeclineOffer performs offered→declined, guarded by token match.
	DeclineOffer(ctx context.Context, token string) (*Entry, error)

	// UpdateEntryStatus performs from→to; ErrEntryTransitioned when the
	// entry is not in from.
	UpdateEntryStatus(ctx context.Context, entryID uuid.UUID, from, to Status) (*Entry, error)

	// RequeueEntry performs expired|declined→waiting and clears the
	// offer fields.
	RequeueEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)

	// RemoveEntry performs any-non-terminal→cancelled.
	RemoveEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)

	// FindExpiredOffers returns offered entries whose TTL passed.
	FindExpiredOffers(ctx context.Context, now time.Time) ([]Entry, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
