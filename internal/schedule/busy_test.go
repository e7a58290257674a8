package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeFeed struct {
	blocks map[uuid.UUID][]BusyBlock
	errs   map[uuid.UUID]error

	mu    sync.Mutex
	calls int
}

// BusyBlocks is called from concurrent fan-out goroutines.
func (f *fakeFeed) BusyBlocks(_ context.Context, _ uuid.UUID, practitionerID uuid.UUID, _, _ time.Time) ([]BusyBlock, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := f.errs[practitionerID]; err != nil {
		return nil, err
	}
	return f.blocks[practitionerID], nil
}

func (f *fakeFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestOccupiedIntervals_MergesBookingsAndFeed(t *testing.T) {
	pracA := uuid.New()
	pracB := uuid.New()
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	booking := BusyBlock{Start: from.Add(9 * time.Hour), End: from.Add(10 * time.Hour)}
	external := BusyBlock{Start: from.Add(14 * time.Hour), End: from.Add(15 * time.Hour)}

	repo := &fakeRepo{
		listBusyBookings: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _, _ time.Time) (map[uuid.UUID][]BusyBlock, error) {
			return map[uuid.UUID][]BusyBlock{pracA: {booking}}, nil
		},
	}
	feed := &fakeFeed{blocks: map[uuid.UUID][]BusyBlock{pracB: {external}}}
	agg := NewBusyAggregator(repo, feed, zerolog.Nop())

	got, err := agg.OccupiedIntervals(context.Background(), testBusinessID, []uuid.UUID{pracA, pracB}, from, to)
	if err != nil {
		t.Fatalf("OccupiedIntervals: %v", err)
	}

	if len(got[pracA]) != 1 || got[pracA][0] != booking {
		t.Errorf("practitioner A: got %v, want booking only", got[pracA])
	}
	if len(got[pracB]) != 1 || got[pracB][0] != external {
		t.Errorf("practitioner B: got %v, want external block only", got[pracB])
	}
	if feed.callCount() != 2 {
		t.Errorf("feed called %d times, want one per practitioner", feed.callCount())
	}
}

func TestOccupiedIntervals_FeedFailureDegradesPerPractitioner(t *testing.T) {
	pracA := uuid.New()
	pracB := uuid.New()
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	booking := BusyBlock{Start: from.Add(9 * time.Hour), End: from.Add(10 * time.Hour)}
	external := BusyBlock{Start: from.Add(14 * time.Hour), End: from.Add(15 * time.Hour)}

	repo := &fakeRepo{
		listBusyBookings: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _, _ time.Time) (map[uuid.UUID][]BusyBlock, error) {
			return map[uuid.UUID][]BusyBlock{pracA: {booking}}, nil
		},
	}
	feed := &fakeFeed{
		blocks: map[uuid.UUID][]BusyBlock{pracB: {external}},
		errs:   map[uuid.UUID]error{pracA: errors.New("calendar gateway timeout")},
	}
	agg := NewBusyAggregator(repo, feed, zerolog.Nop())

	got, err := agg.OccupiedIntervals(context.Background(), testBusinessID, []uuid.UUID{pracA, pracB}, from, to)
	if err != nil {
		t.Fatalf("a feed failure must not fail the query: %v", err)
	}

	// A's bookings survive the feed outage; B's feed is unaffected.
	if len(got[pracA]) != 1 || got[pracA][0] != booking {
		t.Errorf("practitioner A: got %v, want booking preserved", got[pracA])
	}
	if len(got[pracB]) != 1 || got[pracB][0] != external {
		t.Errorf("practitioner B: got %v, want external block", got[pracB])
	}
}

func TestOccupiedIntervals_BookingStoreFailureIsFatal(t *testing.T) {
	storeErr := errors.New("connection refused")
	repo := &fakeRepo{
		listBusyBookings: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _, _ time.Time) (map[uuid.UUID][]BusyBlock, error) {
			return nil, storeErr
		},
	}
	agg := NewBusyAggregator(repo, &fakeFeed{}, zerolog.Nop())

	_, err := agg.OccupiedIntervals(context.Background(), testBusinessID, []uuid.UUID{uuid.New()}, time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, storeErr) {
		t.Fatalf("booking store failure must surface, got %v", err)
	}
}

func TestOccupiedIntervals_NilFeedSkipsExternalSource(t *testing.T) {
	prac := uuid.New()
	repo := &fakeRepo{
		listBusyBookings: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _, _ time.Time) (map[uuid.UUID][]BusyBlock, error) {
			return nil, nil
		},
	}
	agg := NewBusyAggregator(repo, nil, zerolog.Nop())

	got, err := agg.OccupiedIntervals(context.Background(), testBusinessID, []uuid.UUID{prac}, time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("OccupiedIntervals: %v", err)
	}
	if len(got[prac]) != 0 {
		t.Fatalf("expected no intervals, got %v", got[prac])
	}
}
