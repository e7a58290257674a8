package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotline/booking-core/internal/apperr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	var modes []string

	err := row.Scan(
		&s.ID,
		&s.BusinessID,
		&s.Name,
		&s.DurationMin,
		&s.BufferBeforeMin,
		&s.BufferAfterMin,
		&modes,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	s.Modes = make([]AppointmentMode, len(modes))
	for i, m := range modes {
		s.Modes[i] = AppointmentMode(m)
	}
	return &s, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.BusinessID,
		&p.Name,
		&p.Timezone,
		&p.Bookable,
		&p.WaitlistMode,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.PractitionerID,
		&b.ServiceID,
		&b.ClientID,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, duration_min, buffer_before_min, buffer_after_min, modes, active, created_at, updated_at
		FROM services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID)
	return scanService(row)
}

func (r *PgRepository) GetPractitioner(ctx context.Context, businessID, practitionerID uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, timezone, bookable, waitlist_mode, created_at, updated_at
		FROM practitioners
		WHERE id = $1 AND business_id = $2
	`, practitionerID, businessID)
	return scanPractitioner(row)
}

func (r *PgRepository) ListCapablePractitioners(ctx context.Context, businessID, serviceID uuid.UUID) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.business_id, p.name, p.timezone, p.bookable, p.waitlist_mode, p.created_at, p.updated_at
		FROM practitioners p
		JOIN service_practitioners sp ON sp.practitioner_id = p.id
		WHERE sp.service_id = $1 AND p.business_id = $2
		ORDER BY p.created_at
	`, serviceID, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CanPerform(ctx context.Context, practitionerID, serviceID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM service_practitioners
			WHERE practitioner_id = $1 AND service_id = $2
		)
	`, practitionerID, serviceID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) ListWeeklyWindows(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID) (map[uuid.UUID]WeeklySchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practitioner_id, weekday, start_min, end_min
		FROM availability_windows
		WHERE business_id = $1 AND practitioner_id = ANY($2)
		ORDER BY practitioner_id, weekday, start_min
	`, businessID, practitionerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]WeeklySchedule)
	for rows.Next() {
		var practitionerID uuid.UUID
		var weekday, startMin, endMin int
		if err := rows.Scan(&practitionerID, &weekday, &startMin, &endMin); err != nil {
			return nil, err
		}
		weekly := result[practitionerID]
		if weekly == nil {
			weekly = make(WeeklySchedule)
			result[practitionerID] = weekly
		}
		wd := time.Weekday(weekday)
		weekly[wd] = append(weekly[wd], TimeWindow{Start: TimeOfDay(startMin), End: TimeOfDay(endMin)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ReplaceWeeklyWindows(ctx context.Context, businessID, practitionerID uuid.UUID, weekly WeeklySchedule) error {
	if err := weekly.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM availability_windows
		WHERE business_id = $1 AND practitioner_id = $2
	`, businessID, practitionerID)
	if err != nil {
		return err
	}

	for weekday, windows := range weekly {
		for _, w := range windows {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_windows (id, business_id, practitioner_id, weekday, start_min, end_min, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, now())
			`, uuid.New(), businessID, practitionerID, int(weekday), int(w.Start), int(w.End))
			if err != nil {
				if isUniqueViolation(err) {
					return apperr.Wrap(apperr.Conflict, "duplicate availability window", err)
				}
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListExceptions(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to Date) (map[uuid.UUID][]AvailabilityException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, practitioner_id, date, type, start_min, end_min, created_at
		FROM availability_exceptions
		WHERE business_id = $1 AND practitioner_id = ANY($2)
		  AND date >= $3 AND date <= $4
		ORDER BY practitioner_id, date, created_at
	`, businessID, practitionerIDs, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]AvailabilityException)
	for rows.Next() {
		var ex AvailabilityException
		var date time.Time
		var startMin, endMin *int
		if err := rows.Scan(&ex.ID, &ex.BusinessID, &ex.PractitionerID, &date, &ex.Type, &startMin, &endMin, &ex.CreatedAt); err != nil {
			return nil, err
		}
		ex.Date = DateOf(date)
		if ex.Type == ExceptionCustom && startMin != nil && endMin != nil {
			ex.Window = &TimeWindow{Start: TimeOfDay(*startMin), End: TimeOfDay(*endMin)}
		}
		result[ex.PractitionerID] = append(result[ex.PractitionerID], ex)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListBusyBookings(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]BusyBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practitioner_id, start_at, end_at
		FROM bookings
		WHERE business_id = $1 AND practitioner_id = ANY($2)
		  AND status IN ('pending', 'confirmed')
		  AND start_at < $4 AND end_at > $3
		ORDER BY practitioner_id, start_at
	`, businessID, practitionerIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]BusyBlock)
	for rows.Next() {
		var practitionerID uuid.UUID
		var block BusyBlock
		if err := rows.Scan(&practitionerID, &block.Start, &block.End); err != nil {
			return nil, err
		}
		result[practitionerID] = append(result[practitionerID], block)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetBooking(ctx context.Context, businessID, bookingID uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, business_id, practitioner_id, service_id, client_id, start_at, end_at, status, created_at, updated_at
		FROM bookings
		WHERE id = $1 AND business_id = $2
	`, bookingID, businessID)
	return scanBooking(row)
}

func (r *PgRepository) CancelBooking(ctx context.Context, businessID, bookingID uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1 AND business_id = $2
		  AND status IN ('pending', 'confirmed')
		RETURNING id, business_id, practitioner_id, service_id, client_id, start_at, end_at, status, created_at, updated_at
	`, bookingID, businessID)

	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	// Not pending/confirmed anymore. Fetch so a retried cancellation of
	// an already-cancelled booking still yields the freed interval.
	existing, getErr := r.GetBooking(ctx, businessID, bookingID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Status != BookingCancelled {
		return nil, apperr.Newf(apperr.Conflict, "booking is %s and cannot be cancelled", existing.Status)
	}
	return existing, nil
}

var _ Repository = (*PgRepository)(nil)
