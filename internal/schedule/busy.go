package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BusyAggregator merges a practitioner's occupied intervals from
// internal bookings and the external calendar feed.
//
// Bookings are authoritative: a store failure fails the whole query.
// The external feed is best-effort: a fetch failure is logged and that
// practitioner's feed is treated as empty, so an external outage can
// only under-report busy time, never hide internal bookings.
type BusyAggregator struct {
	repo   Repository
	feed   BusyFeed // nil when no calendar is connected
	logger zerolog.Logger
}

func NewBusyAggregator(repo Repository, feed BusyFeed, logger zerolog.Logger) *BusyAggregator {
	return &BusyAggregator{repo: repo, feed: feed, logger: logger}
}

// OccupiedIntervals returns every busy interval per practitioner within
// [from, to). Feed fetches are independent per practitioner and issued
// concurrently with per-practitioner failure isolation.
func (a *BusyAggregator) OccupiedIntervals(ctx context.Context, businessID uuid.UUID, practitionerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]BusyBlock, error) {
	booked, err := a.repo.ListBusyBookings(ctx, businessID, practitionerIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list busy bookings: %w", err)
	}

	occupied := make(map[uuid.UUID][]BusyBlock, len(practitionerIDs))
	for _, id := range practitionerIDs {
		occupied[id] = booked[id]
	}

	if a.feed == nil {
		return occupied, nil
	}

	type feedResult struct {
		practitionerID uuid.UUID
		blocks         []BusyBlock
	}

	results := make(chan feedResult, len(practitionerIDs))
	var wg sync.WaitGroup

	for _, id := range practitionerIDs {
		wg.Add(1)
		go func(practitionerID uuid.UUID) {
			defer wg.Done()
			blocks, err := a.feed.BusyBlocks(ctx, businessID, practitionerID, from, to)
			if err != nil {
				// Deliberate degradation, see the type comment.
				a.logger.Warn().
					Err(err).
					Str("practitioner_id", practitionerID.String()).
					Msg("external busy feed unavailable, treating as empty")
				return
			}
			results <- feedResult{practitionerID: practitionerID, blocks: blocks}
		}(id)
	}

	wg.Wait()
	close(results)

	for res := range results {
		occupied[res.practitionerID] = append(occupied[res.practitionerID], res.blocks...)
	}

	return occupied, nil
}
