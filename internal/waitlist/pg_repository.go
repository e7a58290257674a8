package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, business_id, practitioner_id, service_id, client_id,
	preferred_weekdays, time_preference, priority, status, notes,
	offer_token, offer_start, offer_end, offer_sent_at, offer_expires_at,
	created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanEntry(row pgx.Row, missing error) (*Entry, error) {
	var e Entry
	var weekdays []int

	err := row.Scan(
		&e.ID,
		&e.BusinessID,
		&e.PractitionerID,
		&e.ServiceID,
		&e.ClientID,
		&weekdays,
		&e.TimePreference,
		&e.Priority,
		&e.Status,
		&e.Notes,
		&e.OfferToken,
		&e.OfferStart,
		&e.OfferEnd,
		&e.OfferSentAt,
		&e.OfferExpiresAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, missing
		}
		return nil, err
	}

	e.PreferredWeekdays = make([]time.Weekday, len(weekdays))
	for i, wd := range weekdays {
		e.PreferredWeekdays[i] = time.Weekday(wd)
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows, ErrEntryNotFound)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func weekdayInts(weekdays []time.Weekday) []int {
	out := make([]int, len(weekdays))
	for i, wd := range weekdays {
		out[i] = int(wd)
	}
	return out
}

// Interface methods

func (r *PgRepository) CreateEntry(ctx context.Context, e Entry) (*Entry, error) {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, business_id, practitioner_id, service_id, client_id,
			preferred_weekdays, time_preference, priority, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'waiting', $9, now(), now())
		RETURNING `+entryColumns+`
	`, id, e.BusinessID, e.PractitionerID, e.ServiceID, e.ClientID,
		weekdayInts(e.PreferredWeekdays), e.TimePreference, e.Priority, e.Notes)

	return scanEntry(row, ErrEntryNotFound)
}

func (r *PgRepository) GetEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE id = $1 AND business_id = $2
	`, entryID, businessID)
	return scanEntry(row, ErrEntryNotFound)
}

func (r *PgRepository) GetEntryByToken(ctx context.Context, token string) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE offer_token = $1
	`, token)
	return scanEntry(row, ErrOfferNotFound)
}

func (r *PgRepository) ListEntries(ctx context.Context, businessID uuid.UUID, practitionerID *uuid.UUID, status *Status) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM waitlist_entries
		WHERE business_id = $1
		  AND ($2::uuid IS NULL OR practitioner_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY priority, created_at`

	rows, err := r.pool.Query(ctx, query, businessID, practitionerID, status)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PgRepository) ListMatching(ctx context.Context, q MatchQuery) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE business_id = $1
		  AND practitioner_id = $2
		  AND service_id = $3
		  AND status = 'waiting'
		  AND $4 = ANY(preferred_weekdays)
		  AND time_preference IN ('any', $5)
		ORDER BY priority, created_at
	`, q.BusinessID, q.PractitionerID, q.ServiceID, int(q.Weekday), string(q.Bucket))
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PgRepository) CountMatching(ctx context.Context, q MatchQuery) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM waitlist_entries
		WHERE business_id = $1
		  AND practitioner_id = $2
		  AND service_id = $3
		  AND status = 'waiting'
		  AND $4 = ANY(preferred_weekdays)
		  AND time_preference IN ('any', $5)
	`, q.BusinessID, q.PractitionerID, q.ServiceID, int(q.Weekday), string(q.Bucket)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PgRepository) OfferEntry(ctx context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'offered',
		    offer_token = $2,
		    offer_start = $3,
		    offer_end = $4,
		    offer_sent_at = $5,
		    offer_expires_at = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'waiting'
		RETURNING `+entryColumns+`
	`, entryID, token, start, end, sentAt, expiresAt)

	return scanEntry(row, ErrEntryTransitioned)
}

func (r *PgRepository) FindActiveOffer(ctx context.Context, practitionerID uuid.UUID, start time.Time, now time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE practitioner_id = $1
		  AND status = 'offered'
		  AND offer_start = $2
		  AND offer_expires_at > $3
		ORDER BY offer_sent_at DESC
		LIMIT 1
	`, practitionerID, start, now)
	return scanEntry(row, ErrOfferNotFound)
}

func (r *PgRepository) AcceptOffer(ctx context.Context, token string, now time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'booked',
		    updated_at = now()
		WHERE offer_token = $1
		  AND status = 'offered'
		  AND offer_expires_at > $2
		RETURNING `+entryColumns+`
	`, token, now)

	entry, err := scanEntry(row, ErrEntryTransitioned)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrEntryTransitioned) {
		return nil, err
	}

	// Distinguish an unknown token from an expired or consumed offer.
	if _, getErr := r.GetEntryByToken(ctx, token); getErr != nil {
		return nil, getErr
	}
	return nil, ErrEntryTransitioned
}

func (r *PgRepository) DeclineOffer(ctx context.Context, token string) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'declined',
		    updated_at = now()
		WHERE offer_token = $1
		  AND status = 'offered'
		RETURNING `+entryColumns+`
	`, token)

	entry, err := scanEntry(row, ErrEntryTransitioned)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrEntryTransitioned) {
		return nil, err
	}

	if _, getErr := r.GetEntryByToken(ctx, token); getErr != nil {
		return nil, getErr
	}
	return nil, ErrEntryTransitioned
}

func (r *PgRepository) UpdateEntryStatus(ctx context.Context, entryID uuid.UUID, from, to Status) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+entryColumns+`
	`, entryID, from, to)

	return scanEntry(row, ErrEntryTransitioned)
}

func (r *PgRepository) RequeueEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'waiting',
		    offer_token = NULL,
		    offer_start = NULL,
		    offer_end = NULL,
		    offer_sent_at = NULL,
		    offer_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND business_id = $2
		  AND status IN ('expired', 'declined')
		RETURNING `+entryColumns+`
	`, entryID, businessID)

	entry, err := scanEntry(row, ErrEntryTransitioned)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrEntryTransitioned) {
		return nil, err
	}

	if _, getErr := r.GetEntry(ctx, businessID, entryID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrEntryTransitioned
}

func (r *PgRepository) RemoveEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1 AND business_id = $2
		  AND status NOT IN ('booked', 'cancelled')
		RETURNING `+entryColumns+`
	`, entryID, businessID)

	entry, err := scanEntry(row, ErrEntryTransitioned)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrEntryTransitioned) {
		return nil, err
	}

	if _, getErr := r.GetEntry(ctx, businessID, entryID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrEntryTransitioned
}

func (r *PgRepository) FindExpiredOffers(ctx context.Context, now time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'offered'
		  AND offer_expires_at IS NOT NULL
		  AND offer_expires_at < $1
		ORDER BY offer_expires_at
	`, now)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO waitlist_events (event_type, entry_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.EntryID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert waitlist event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ Repository = (*PgRepository)(nil)
