package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/apperr"
)

// OccupiedSource yields busy intervals per practitioner. Satisfied by
// BusyAggregator; faked in tests.
type OccupiedSource interface {
	OccupiedIntervals(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]BusyBlock, error)
}

type SlotQuery struct {
	BusinessID     uuid.UUID
	ServiceID      uuid.UUID
	PractitionerID *uuid.UUID      // nil means every capable practitioner
	From           Date            // inclusive
	To             Date            // inclusive
	Mode           AppointmentMode // empty means any supported mode
}

// SlotService computes bookable slots. Pure read, no side effects.
type SlotService struct {
	repo        Repository
	occupied    OccupiedSource
	granularity time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewSlotService(repo Repository, occupied OccupiedSource, granularity time.Duration, now func() time.Time, logger zerolog.Logger) *SlotService {
	if now == nil {
		now = time.Now
	}
	return &SlotService{
		repo:        repo,
		occupied:    occupied,
		granularity: granularity,
		now:         now,
		logger:      logger,
	}
}

// FindSlots returns every future, conflict-free slot for the query, in
// practitioner order, then chronological.
func (s *SlotService) FindSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	if q.To.Equal(Date{}) || q.From.Equal(Date{}) {
		return nil, apperr.New(apperr.Validation, "date range is required")
	}
	if q.From.After(q.To) {
		return nil, apperr.New(apperr.Validation, "date range is inverted")
	}

	service, err := s.repo.GetService(ctx, q.BusinessID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if !service.Active {
		return nil, ErrServiceNotFound
	}
	if q.Mode != "" && !service.SupportsMode(q.Mode) {
		return nil, apperr.Newf(apperr.Validation, "service does not support mode %q", q.Mode)
	}

	practitioners, err := s.resolvePractitioners(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(practitioners) == 0 {
		return nil, nil
	}

	locations := make(map[uuid.UUID]*time.Location, len(practitioners))
	ids := make([]uuid.UUID, 0, len(practitioners))
	for _, p := range practitioners {
		loc, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, apperr.Wrap(apperr.Infrastructure, fmt.Sprintf("practitioner %s has invalid timezone %q", p.ID, p.Timezone), err)
		}
		locations[p.ID] = loc
		ids = append(ids, p.ID)
	}

	weekly, err := s.repo.ListWeeklyWindows(ctx, q.BusinessID, ids)
	if err != nil {
		return nil, fmt.Errorf("list weekly windows: %w", err)
	}
	exceptions, err := s.repo.ListExceptions(ctx, q.BusinessID, ids, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	rangeStart, rangeEnd := queryRange(q.From, q.To, practitioners, locations)
	busy, err := s.occupied.OccupiedIntervals(ctx, q.BusinessID, ids, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	blockDur := time.Duration(service.TotalBlockMin()) * time.Minute
	occupiedDur := time.Duration(service.DurationMin) * time.Minute

	var slots []Slot
	for _, p := range practitioners {
		loc := locations[p.ID]
		for date := q.From; !date.After(q.To); date = date.Next() {
			windows := ResolveDay(weekly[p.ID], exceptions[p.ID], date)
			if len(windows) == 0 {
				continue
			}
			slots = append(slots, s.generateForDay(p.ID, date, loc, windows, busy[p.ID], now, blockDur, occupiedDur)...)
		}
	}
	return slots, nil
}

func (s *SlotService) resolvePractitioners(ctx context.Context, q SlotQuery) ([]Practitioner, error) {
	if q.PractitionerID != nil {
		p, err := s.repo.GetPractitioner(ctx, q.BusinessID, *q.PractitionerID)
		if err != nil {
			return nil, err
		}
		capable, err := s.repo.CanPerform(ctx, p.ID, q.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("check capability: %w", err)
		}
		if !capable {
			return nil, apperr.New(apperr.Validation, "practitioner cannot perform this service")
		}
		if !p.Bookable {
			return nil, apperr.New(apperr.Validation, "practitioner is not bookable")
		}
		return []Practitioner{*p}, nil
	}

	all, err := s.repo.ListCapablePractitioners(ctx, q.BusinessID, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list capable practitioners: %w", err)
	}
	bookable := all[:0]
	for _, p := range all {
		if p.Bookable {
			bookable = append(bookable, p)
		}
	}
	return bookable, nil
}

// generateForDay walks the open windows at the configured granularity
// and keeps candidates that fit the window, are strictly in the future,
// and do not overlap any busy interval.
func (s *SlotService) generateForDay(practitionerID uuid.UUID, date Date, loc *time.Location, windows []TimeWindow, busy []BusyBlock, now time.Time, blockDur, occupiedDur time.Duration) []Slot {
	var out []Slot
	for _, w := range windows {
		for cand := w.Start; cand.Add(blockDur) <= w.End; cand = cand.Add(s.granularity) {
			startAt := cand.At(date, loc)
			if !startAt.After(now) {
				continue
			}
			occupiedEnd := startAt.Add(occupiedDur)
			if overlapsAny(busy, startAt, occupiedEnd) {
				continue
			}
			out = append(out, Slot{
				PractitionerID: practitionerID,
				Date:           date,
				StartTime:      cand,
				EndTime:        cand.Add(occupiedDur),
				StartAt:        startAt,
				EndAt:          occupiedEnd,
			})
		}
	}
	return out
}

func overlapsAny(busy []BusyBlock, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// queryRange covers local midnight of the first date through local
// midnight after the last date across every practitioner's zone.
func queryRange(from, to Date, practitioners []Practitioner, locations map[uuid.UUID]*time.Location) (time.Time, time.Time) {
	var start, end time.Time
	for _, p := range practitioners {
		loc := locations[p.ID]
		s := TimeOfDay(0).At(from, loc)
		e := TimeOfDay(0).At(to.Next(), loc)
		if start.IsZero() || s.Before(start) {
			start = s
		}
		if end.IsZero() || e.After(end) {
			end = e
		}
	}
	return start, end
}
