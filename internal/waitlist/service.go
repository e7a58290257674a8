package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/apperr"
	redisclient "github.com/slotline/booking-core/internal/redis"
	"github.com/slotline/booking-core/internal/schedule"
)

const (
	EventOfferSent      = "WAITLIST_OFFER_SENT"
	EventOfferAccepted  = "WAITLIST_OFFER_ACCEPTED"
	EventOfferDeclined  = "WAITLIST_OFFER_DECLINED"
	EventOfferExpired   = "WAITLIST_OFFER_EXPIRED"
	EventManualMatches  = "WAITLIST_MANUAL_MATCHES"
	EventEntryRequeued  = "WAITLIST_ENTRY_REQUEUED"
	EventEntryCancelled = "WAITLIST_ENTRY_CANCELLED"
)

var (
	ErrOfferExpired = apperr.New(apperr.Conflict, "offer has expired or is no longer active")
)

// PractitionerDirectory is the read-only practitioner lookup the state
// machine needs for waitlist mode and timezone. schedule.Repository
// satisfies it.
type PractitionerDirectory interface {
	GetPractitioner(ctx context.Context, businessID, practitionerID uuid.UUID) (*schedule.Practitioner, error)
}

// Service is the offer state machine plus its cancellation trigger.
//
// Correctness rests on the repository's conditional writes: every
// transition is an UPDATE guarded by the current status, so when a live
// cancellation races the expiry sweep the loser's write matches no row
// and becomes a no-op. The Redis lock on the freed interval only keeps
// the race window small; it is not the guard.
type Service struct {
	repo      Repository
	directory PractitionerDirectory
	matcher   *Matcher
	locker    redisclient.Locker
	notifier  Notifier
	offerTTL  time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, directory PractitionerDirectory, matcher *Matcher, locker redisclient.Locker, notifier Notifier, offerTTL time.Duration, now func() time.Time, logger zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		directory: directory,
		matcher:   matcher,
		locker:    locker,
		notifier:  notifier,
		offerTTL:  offerTTL,
		now:       now,
		logger:    logger,
	}
}

// Register queues a new entry in waiting status.
func (s *Service) Register(ctx context.Context, e Entry) (*Entry, error) {
	if len(e.PreferredWeekdays) == 0 {
		return nil, apperr.New(apperr.Validation, "at least one preferred weekday is required")
	}
	for _, wd := range e.PreferredWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, apperr.Newf(apperr.Validation, "invalid weekday %d", wd)
		}
	}
	switch e.TimePreference {
	case PreferAny, PreferMorning, PreferAfternoon:
	case "":
		e.TimePreference = PreferAny
	default:
		return nil, apperr.Newf(apperr.Validation, "invalid time preference %q", e.TimePreference)
	}

	e.Status = StatusWaiting
	return s.repo.CreateEntry(ctx, e)
}

// HandleCancellation is the integration point: a booking freed an
// interval. Behavior depends on the practitioner's waitlist mode:
// off does nothing, manual surfaces a count, auto offers the interval
// to the first matching entry. Processing the same cancellation twice
// is a no-op once an unexpired offer exists for the interval.
func (s *Service) HandleCancellation(ctx context.Context, ev CancellationEvent) (*Offer, error) {
	prac, err := s.directory.GetPractitioner(ctx, ev.BusinessID, ev.PractitionerID)
	if err != nil {
		return nil, err
	}

	switch prac.WaitlistMode {
	case schedule.WaitlistOff:
		return nil, nil

	case schedule.WaitlistManual:
		loc, err := s.location(prac)
		if err != nil {
			return nil, err
		}
		count, err := s.matcher.CountCandidates(ctx, ev.BusinessID, ev.PractitionerID, ev.ServiceID, ev.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("count matching entries: %w", err)
		}
		if count > 0 {
			s.notifier.WaitingMatched(ctx, ev, count)
			s.logEvent(ctx, nil, EventManualMatches, map[string]any{
				"booking_id":      ev.BookingID.String(),
				"practitioner_id": ev.PractitionerID.String(),
				"count":           count,
			})
		}
		return nil, nil

	case schedule.WaitlistAuto:
		loc, err := s.location(prac)
		if err != nil {
			return nil, err
		}

		var offer *Offer
		err = s.locker.WithIntervalLock(ctx, ev.PractitionerID, ev.Start, func(lockCtx context.Context) error {
			var offerErr error
			offer, offerErr = s.offerNext(lockCtx, ev.BusinessID, ev.PractitionerID, ev.ServiceID, ev.Start, ev.End, loc)
			return offerErr
		})
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another process is already working this interval.
			s.logger.Debug().
				Str("practitioner_id", ev.PractitionerID.String()).
				Time("start", ev.Start).
				Msg("freed interval already being processed")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return offer, nil

	default:
		return nil, apperr.Newf(apperr.Validation, "unknown waitlist mode %q", prac.WaitlistMode)
	}
}

// offerNext runs the waiting→offered transition for the best candidate.
// Re-running it for an interval that already holds an unexpired offer
// returns that offer instead of creating a second one.
func (s *Service) offerNext(ctx context.Context, businessID, practitionerID, serviceID uuid.UUID, start, end time.Time, loc *time.Location) (*Offer, error) {
	now := s.now()

	existing, err := s.repo.FindActiveOffer(ctx, practitionerID, start, now)
	if err != nil && !errors.Is(err, ErrOfferNotFound) {
		return nil, fmt.Errorf("check active offer: %w", err)
	}
	if existing != nil {
		return offerFromEntry(existing), nil
	}

	candidates, err := s.matcher.Candidates(ctx, businessID, practitionerID, serviceID, start, loc)
	if err != nil {
		return nil, fmt.Errorf("match candidates: %w", err)
	}

	for i, candidate := range candidates {
		token := uuid.NewString()
		expiresAt := now.Add(s.offerTTL)

		updated, err := s.repo.OfferEntry(ctx, candidate.ID, token, start, end, now, expiresAt)
		if err != nil {
			if errors.Is(err, ErrEntryTransitioned) {
				// Lost a race for this candidate; try the next one.
				continue
			}
			return nil, fmt.Errorf("offer entry: %w", err)
		}

		offer := &Offer{
			OfferedTo:      updated.ID,
			ClientID:       updated.ClientID,
			Token:          token,
			Start:          start,
			End:            end,
			ExpiresAt:      expiresAt,
			RemainingQueue: len(candidates) - i - 1,
		}

		s.notifier.OfferSent(ctx, *updated, *offer)
		s.logEvent(ctx, &updated.ID, EventOfferSent, map[string]any{
			"token":      token,
			"start":      start,
			"end":        end,
			"expires_at": expiresAt,
		})
		return offer, nil
	}

	return nil, nil
}

// ExpireOffers is the periodic sweep. It flips overdue offers to
// expired and, in auto mode, chains a fresh offer for the same freed
// interval until someone accepts or the pool is exhausted. Idempotent:
// a concurrent sweep or accept makes the conditional write a no-op.
func (s *Service) ExpireOffers(ctx context.Context) error {
	now := s.now()
	overdue, err := s.repo.FindExpiredOffers(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired offers: %w", err)
	}

	for _, entry := range overdue {
		updated, err := s.repo.UpdateEntryStatus(ctx, entry.ID, StatusOffered, StatusExpired)
		if err != nil {
			if errors.Is(err, ErrEntryTransitioned) {
				continue
			}
			s.logger.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to expire offer")
			continue
		}

		s.notifier.OfferExpired(ctx, *updated)
		s.logEvent(ctx, &updated.ID, EventOfferExpired, map[string]any{
			"reason": "sweep",
		})

		s.reofferAfterExpiry(ctx, *updated)
	}

	return nil
}

// reofferAfterExpiry re-runs the matcher against the entry's recorded
// interval. Failures are logged, not returned: one bad entry must not
// stall the sweep.
func (s *Service) reofferAfterExpiry(ctx context.Context, entry Entry) {
	if entry.OfferStart == nil || entry.OfferEnd == nil {
		return
	}

	prac, err := s.directory.GetPractitioner(ctx, entry.BusinessID, entry.PractitionerID)
	if err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to load practitioner for re-offer")
		return
	}
	if prac.WaitlistMode != schedule.WaitlistAuto {
		return
	}

	loc, err := s.location(prac)
	if err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to resolve timezone for re-offer")
		return
	}

	start, end := *entry.OfferStart, *entry.OfferEnd
	err = s.locker.WithIntervalLock(ctx, entry.PractitionerID, start, func(lockCtx context.Context) error {
		_, offerErr := s.offerNext(lockCtx, entry.BusinessID, entry.PractitionerID, entry.ServiceID, start, end, loc)
		return offerErr
	})
	if err != nil && !errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.logger.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("re-offer after expiry failed")
	}
}

// AcceptOffer performs offered→booked. The TTL is a hard deadline
// enforced in the conditional write with the same clock the sweep uses,
// so an effectively-expired offer cannot be accepted even if the sweep
// has not flipped it yet.
func (s *Service) AcceptOffer(ctx context.Context, token string) (*Entry, error) {
	updated, err := s.repo.AcceptOffer(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, ErrEntryTransitioned) {
			return nil, ErrOfferExpired
		}
		return nil, err
	}

	s.logEvent(ctx, &updated.ID, EventOfferAccepted, map[string]any{"token": token})
	return updated, nil
}

// DeclineOffer performs offered→declined.
func (s *Service) DeclineOffer(ctx context.Context, token string) (*Entry, error) {
	updated, err := s.repo.DeclineOffer(ctx, token)
	if err != nil {
		if errors.Is(err, ErrEntryTransitioned) {
			return nil, ErrOfferExpired
		}
		return nil, err
	}

	s.logEvent(ctx, &updated.ID, EventOfferDeclined, map[string]any{"token": token})
	return updated, nil
}

// Requeue is the staff action putting an expired or declined entry back
// in the queue.
func (s *Service) Requeue(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	updated, err := s.repo.RequeueEntry(ctx, businessID, entryID)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, &updated.ID, EventEntryRequeued, map[string]any{})
	return updated, nil
}

// Remove is the staff action cancelling any non-terminal entry.
func (s *Service) Remove(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	updated, err := s.repo.RemoveEntry(ctx, businessID, entryID)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, &updated.ID, EventEntryCancelled, map[string]any{})
	return updated, nil
}

func (s *Service) location(p *schedule.Practitioner) (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, fmt.Sprintf("practitioner %s has invalid timezone %q", p.ID, p.Timezone), err)
	}
	return loc, nil
}

func (s *Service) logEvent(ctx context.Context, entryID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		EntryID:   entryID,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to insert event log")
	}
}

func offerFromEntry(e *Entry) *Offer {
	offer := &Offer{
		OfferedTo: e.ID,
		ClientID:  e.ClientID,
	}
	if e.OfferToken != nil {
		offer.Token = *e.OfferToken
	}
	if e.OfferStart != nil {
		offer.Start = *e.OfferStart
	}
	if e.OfferEnd != nil {
		offer.End = *e.OfferEnd
	}
	if e.OfferExpiresAt != nil {
		offer.ExpiresAt = *e.OfferExpiresAt
	}
	return offer
}
