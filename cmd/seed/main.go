package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/db"
	"github.com/slotline/booking-core/internal/logging"
)

const (
	businessCount         = 5
	practitionersPerBiz   = 8
	servicesPerBiz        = 6
	bookingsPerBiz        = 120
	waitlistEntriesPerBiz = 40
)

var timezones = []string{
	"UTC",
	"America/New_York",
	"America/Chicago",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Berlin",
	"Australia/Sydney",
}

var waitlistModes = []string{"off", "manual", "auto"}

var serviceModes = [][]string{
	{"in_person"},
	{"in_person", "video"},
	{"video", "phone"},
	{"in_person", "video", "phone"},
}

func main() {
	logger := logging.New(os.Getenv("APP_ENV"), "seed")
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	for i := 0; i < businessCount; i++ {
		if err := seedBusiness(context.Background(), pool, logger); err != nil {
			logger.Fatal().Err(err).Msg("seed business")
		}
	}

	logger.Info().Msg("seed complete")
}

func seedBusiness(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	businessID := uuid.New()
	name := gofakeit.Company() + " Clinic"

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO businesses (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
	`, businessID, name)
	if err != nil {
		return err
	}

	practitionerIDs := make([]uuid.UUID, 0, practitionersPerBiz)
	for i := 0; i < practitionersPerBiz; i++ {
		id := uuid.New()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]
		mode := waitlistModes[gofakeit.Number(0, len(waitlistModes)-1)]
		bookable := gofakeit.Number(0, 9) > 0 // roughly one in ten off the books

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, business_id, name, timezone, bookable, waitlist_mode, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, businessID, gofakeit.Name(), tz, bookable, mode)
		if err != nil {
			return err
		}
		practitionerIDs = append(practitionerIDs, id)
	}

	serviceIDs := make([]uuid.UUID, 0, servicesPerBiz)
	for i := 0; i < servicesPerBiz; i++ {
		id := uuid.New()
		duration := []int{15, 20, 30, 45, 60}[gofakeit.Number(0, 4)]
		buffer := []int{0, 0, 5, 10}[gofakeit.Number(0, 3)]
		modes := serviceModes[gofakeit.Number(0, len(serviceModes)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, business_id, name, duration_min, buffer_before_min, buffer_after_min, modes, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true, now(), now())
		`, id, businessID, gofakeit.JobTitle()+" Session", duration, buffer, buffer, modes)
		if err != nil {
			return err
		}
		serviceIDs = append(serviceIDs, id)
	}

	// Each practitioner can perform a random subset of services.
	for _, pracID := range practitionerIDs {
		for _, svcID := range serviceIDs {
			if gofakeit.Number(0, 2) == 0 {
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO service_practitioners (service_id, practitioner_id)
				VALUES ($1, $2)
			`, svcID, pracID)
			if err != nil {
				return err
			}
		}
	}

	// Weekday pattern: morning and afternoon blocks Monday-Friday.
	for _, pracID := range practitionerIDs {
		for weekday := 1; weekday <= 5; weekday++ {
			startHour := gofakeit.Number(7, 9)
			for _, block := range [][2]int{
				{startHour * 60, 12 * 60},
				{13 * 60, (13 + gofakeit.Number(3, 5)) * 60},
			} {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (id, business_id, practitioner_id, weekday, start_min, end_min, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, now())
				`, uuid.New(), businessID, pracID, weekday, block[0], block[1])
				if err != nil {
					return err
				}
			}
		}
	}

	if err := seedBookings(ctx, tx, businessID, practitionerIDs, serviceIDs); err != nil {
		return err
	}
	if err := seedWaitlist(ctx, tx, businessID, practitionerIDs, serviceIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().
		Str("business_id", businessID.String()).
		Str("name", name).
		Int("practitioners", len(practitionerIDs)).
		Int("services", len(serviceIDs)).
		Msg("business seeded")
	return nil
}

// seedBookings fills the next two weeks with pending/confirmed bookings
// on half-hour boundaries during weekday working hours.
func seedBookings(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, practitionerIDs, serviceIDs []uuid.UUID) error {
	statuses := []string{"pending", "confirmed", "confirmed", "confirmed"}

	for i := 0; i < bookingsPerBiz; i++ {
		pracID := practitionerIDs[gofakeit.Number(0, len(practitionerIDs)-1)]
		svcID := serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]
		status := statuses[gofakeit.Number(0, len(statuses)-1)]

		day := time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, 14))
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		startAt := time.Date(day.Year(), day.Month(), day.Day(), gofakeit.Number(9, 16), []int{0, 30}[gofakeit.Number(0, 1)], 0, 0, time.UTC)
		endAt := startAt.Add(time.Duration([]int{15, 30, 45, 60}[gofakeit.Number(0, 3)]) * time.Minute)

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, business_id, practitioner_id, service_id, client_id, start_at, end_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		`, uuid.New(), businessID, pracID, svcID, uuid.New(), startAt, endAt, status)
		if err != nil {
			return err
		}
	}

	return nil
}

func seedWaitlist(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, practitionerIDs, serviceIDs []uuid.UUID) error {
	preferences := []string{"any", "any", "morning", "afternoon"}

	for i := 0; i < waitlistEntriesPerBiz; i++ {
		pracID := practitionerIDs[gofakeit.Number(0, len(practitionerIDs)-1)]
		svcID := serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]

		weekdaySet := map[int]bool{}
		for n := gofakeit.Number(1, 3); n > 0; n-- {
			weekdaySet[gofakeit.Number(1, 5)] = true
		}
		weekdays := make([]int, 0, len(weekdaySet))
		for wd := range weekdaySet {
			weekdays = append(weekdays, wd)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO waitlist_entries (id, business_id, practitioner_id, service_id, client_id,
				preferred_weekdays, time_preference, priority, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'waiting', $9, now(), now())
		`, uuid.New(), businessID, pracID, svcID, uuid.New(),
			weekdays, preferences[gofakeit.Number(0, len(preferences)-1)],
			gofakeit.Number(0, 2), gofakeit.Sentence(6))
		if err != nil {
			return err
		}
	}

	return nil
}
