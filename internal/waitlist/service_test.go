package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/apperr"
	redisclient "github.com/slotline/booking-core/internal/redis"
	"github.com/slotline/booking-core/internal/schedule"
)

type fakeWaitlistRepo struct {
	createEntry       func(ctx context.Context, e Entry) (*Entry, error)
	getEntry          func(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)
	getEntryByToken   func(ctx context.Context, token string) (*Entry, error)
	listEntries       func(ctx context.Context, businessID uuid.UUID, practitionerID *uuid.UUID, status *Status) ([]Entry, error)
	listMatching      func(ctx context.Context, q MatchQuery) ([]Entry, error)
	countMatching     func(ctx context.Context, q MatchQuery) (int, error)
	offerEntry        func(ctx context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error)
	findActiveOffer   func(ctx context.Context, practitionerID uuid.UUID, start, now time.Time) (*Entry, error)
	acceptOffer       func(ctx context.Context, token string, now time.Time) (*Entry, error)
	declineOffer      func(ctx context.Context, token string) (*Entry, error)
	updateEntryStatus func(ctx context.Context, entryID uuid.UUID, from, to Status) (*Entry, error)
	requeueEntry      func(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)
	removeEntry       func(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error)
	findExpiredOffers func(ctx context.Context, now time.Time) ([]Entry, error)
	insertEvent       func(ctx context.Context, ev EventLog) error
}

func (f *fakeWaitlistRepo) CreateEntry(ctx context.Context, e Entry) (*Entry, error) {
	if f.createEntry == nil {
		panic("CreateEntry not configured")
	}
	return f.createEntry(ctx, e)
}

func (f *fakeWaitlistRepo) GetEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	if f.getEntry == nil {
		panic("GetEntry not configured")
	}
	return f.getEntry(ctx, businessID, entryID)
}

func (f *fakeWaitlistRepo) GetEntryByToken(ctx context.Context, token string) (*Entry, error) {
	if f.getEntryByToken == nil {
		panic("GetEntryByToken not configured")
	}
	return f.getEntryByToken(ctx, token)
}

func (f *fakeWaitlistRepo) ListEntries(ctx context.Context, businessID uuid.UUID, practitionerID *uuid.UUID, status *Status) ([]Entry, error) {
	if f.listEntries == nil {
		panic("ListEntries not configured")
	}
	return f.listEntries(ctx, businessID, practitionerID, status)
}

func (f *fakeWaitlistRepo) ListMatching(ctx context.Context, q MatchQuery) ([]Entry, error) {
	if f.listMatching == nil {
		panic("ListMatching not configured")
	}
	return f.listMatching(ctx, q)
}

func (f *fakeWaitlistRepo) CountMatching(ctx context.Context, q MatchQuery) (int, error) {
	if f.countMatching == nil {
		panic("CountMatching not configured")
	}
	return f.countMatching(ctx, q)
}

func (f *fakeWaitlistRepo) OfferEntry(ctx context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error) {
	if f.offerEntry == nil {
		panic("OfferEntry not configured")
	}
	return f.offerEntry(ctx, entryID, token, start, end, sentAt, expiresAt)
}

func (f *fakeWaitlistRepo) FindActiveOffer(ctx context.Context, practitionerID uuid.UUID, start, now time.Time) (*Entry, error) {
	if f.findActiveOffer == nil {
		panic("FindActiveOffer not configured")
	}
	return f.findActiveOffer(ctx, practitionerID, start, now)
}

func (f *fakeWaitlistRepo) AcceptOffer(ctx context.Context, token string, now time.Time) (*Entry, error) {
	if f.acceptOffer == nil {
		panic("AcceptOffer not configured")
	}
	return f.acceptOffer(ctx, token, now)
}

func (f *fakeWaitlistRepo) DeclineOffer(ctx context.Context, token string) (*Entry, error) {
	if f.declineOffer == nil {
		panic("DeclineOffer not configured")
	}
	return f.declineOffer(ctx, token)
}

func (f *fakeWaitlistRepo) UpdateEntryStatus(ctx context.Context, entryID uuid.UUID, from, to Status) (*Entry, error) {
	if f.updateEntryStatus == nil {
		panic("UpdateEntryStatus not configured")
	}
	return f.updateEntryStatus(ctx, entryID, from, to)
}

func (f *fakeWaitlistRepo) RequeueEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	if f.requeueEntry == nil {
		panic("RequeueEntry not configured")
	}
	return f.requeueEntry(ctx, businessID, entryID)
}

func (f *fakeWaitlistRepo) RemoveEntry(ctx context.Context, businessID, entryID uuid.UUID) (*Entry, error) {
	if f.removeEntry == nil {
		panic("RemoveEntry not configured")
	}
	return f.removeEntry(ctx, businessID, entryID)
}

func (f *fakeWaitlistRepo) FindExpiredOffers(ctx context.Context, now time.Time) ([]Entry, error) {
	if f.findExpiredOffers == nil {
		panic("FindExpiredOffers not configured")
	}
	return f.findExpiredOffers(ctx, now)
}

func (f *fakeWaitlistRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	if f.insertEvent == nil {
		return nil
	}
	return f.insertEvent(ctx, ev)
}

type fakeLocker struct {
	denied bool
	calls  int
}

func (l *fakeLocker) WithIntervalLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.calls++
	if l.denied {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fakeNotifier struct {
	offersSent     []Offer
	offersExpired  []Entry
	waitingMatched []int
}

func (n *fakeNotifier) OfferSent(_ context.Context, _ Entry, offer Offer) {
	n.offersSent = append(n.offersSent, offer)
}

func (n *fakeNotifier) OfferExpired(_ context.Context, entry Entry) {
	n.offersExpired = append(n.offersExpired, entry)
}

func (n *fakeNotifier) WaitingMatched(_ context.Context, _ CancellationEvent, count int) {
	n.waitingMatched = append(n.waitingMatched, count)
}

type fakeDirectory struct {
	practitioner *schedule.Practitioner
	err          error
}

func (d *fakeDirectory) GetPractitioner(_ context.Context, _, _ uuid.UUID) (*schedule.Practitioner, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.practitioner, nil
}

var (
	wlBusinessID = uuid.MustParse("aaaaaaaa-1111-1111-1111-111111111111")
	wlPracID     = uuid.MustParse("bbbbbbbb-2222-2222-2222-222222222222")
	wlServiceID  = uuid.MustParse("cccccccc-3333-3333-3333-333333333333")
)

// Monday 2025-06-02 09:00 UTC, freed by a cancelled 30 min booking.
var mondayMorningEvent = CancellationEvent{
	BookingID:      uuid.MustParse("dddddddd-4444-4444-4444-444444444444"),
	BusinessID:     wlBusinessID,
	PractitionerID: wlPracID,
	ServiceID:      wlServiceID,
	Start:          time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	End:            time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
}

func wlPractitioner(mode schedule.WaitlistMode) *schedule.Practitioner {
	return &schedule.Practitioner{
		ID:           wlPracID,
		BusinessID:   wlBusinessID,
		Name:         "Dana",
		Timezone:     "UTC",
		Bookable:     true,
		WaitlistMode: mode,
	}
}

func waitingEntry(priority int, createdAt time.Time) Entry {
	return Entry{
		ID:                uuid.New(),
		BusinessID:        wlBusinessID,
		PractitionerID:    wlPracID,
		ServiceID:         wlServiceID,
		ClientID:          uuid.New(),
		PreferredWeekdays: []time.Weekday{time.Monday},
		TimePreference:    PreferMorning,
		Priority:          priority,
		Status:            StatusWaiting,
		CreatedAt:         createdAt,
	}
}

func newTestService(repo *fakeWaitlistRepo, directory PractitionerDirectory, locker *fakeLocker, notifier *fakeNotifier, now time.Time) *Service {
	return NewService(repo, directory, NewMatcher(repo, 12), locker, notifier, 2*time.Hour, func() time.Time { return now }, zerolog.Nop())
}

func TestHandleCancellation_AutoOffersFirstCandidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := waitingEntry(0, now.Add(-48*time.Hour))
	second := waitingEntry(0, now.Add(-24*time.Hour))

	var offeredID uuid.UUID
	repo := &fakeWaitlistRepo{
		findActiveOffer: func(_ context.Context, _ uuid.UUID, _, _ time.Time) (*Entry, error) {
			return nil, ErrOfferNotFound
		},
		listMatching: func(_ context.Context, q MatchQuery) ([]Entry, error) {
			if q.Weekday != time.Monday || q.Bucket != PreferMorning {
				t.Errorf("unexpected match query: %+v", q)
			}
			return []Entry{first, second}, nil
		},
		offerEntry: func(_ context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error) {
			offeredID = entryID
			updated := first
			updated.Status = StatusOffered
			updated.OfferToken = &token
			updated.OfferStart = &start
			updated.OfferEnd = &end
			updated.OfferSentAt = &sentAt
			updated.OfferExpiresAt = &expiresAt
			return &updated, nil
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, notifier, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer == nil {
		t.Fatal("expected an offer")
	}

	if offeredID != first.ID {
		t.Errorf("offered to %s, want first candidate %s", offeredID, first.ID)
	}
	if offer.Token == "" {
		t.Error("offer token must be set")
	}
	if !offer.Start.Equal(mondayMorningEvent.Start) || !offer.End.Equal(mondayMorningEvent.End) {
		t.Errorf("offered interval %s-%s, want the freed interval", offer.Start, offer.End)
	}
	if !offer.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("expires at %s, want cancellation time + 2h", offer.ExpiresAt)
	}
	if offer.RemainingQueue != 1 {
		t.Errorf("remaining queue = %d, want 1", offer.RemainingQueue)
	}
	if len(notifier.offersSent) != 1 {
		t.Errorf("notifier received %d offers, want 1", len(notifier.offersSent))
	}
}

func TestHandleCancellation_ManualSurfacesCountOnly(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeWaitlistRepo{
		countMatching: func(_ context.Context, _ MatchQuery) (int, error) {
			return 3, nil
		},
		// No offerEntry, no updateEntryStatus: any transition attempt
		// panics the test.
	}
	notifier := &fakeNotifier{}
	locker := &fakeLocker{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistManual)}, locker, notifier, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer != nil {
		t.Fatalf("manual mode must not offer, got %+v", offer)
	}
	if len(notifier.waitingMatched) != 1 || notifier.waitingMatched[0] != 3 {
		t.Fatalf("expected side-channel count 3, got %v", notifier.waitingMatched)
	}
	if locker.calls != 0 {
		t.Errorf("manual mode must not take the interval lock")
	}
}

func TestHandleCancellation_OffModeDoesNothing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeWaitlistRepo{}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistOff)}, &fakeLocker{}, notifier, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer != nil {
		t.Fatalf("off mode must not offer, got %+v", offer)
	}
	if len(notifier.waitingMatched) != 0 {
		t.Error("off mode must not notify")
	}
}

func TestHandleCancellation_RetryReturnsExistingOffer(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := uuid.NewString()
	expiresAt := now.Add(90 * time.Minute)
	active := waitingEntry(0, now.Add(-24*time.Hour))
	active.Status = StatusOffered
	active.OfferToken = &token
	active.OfferStart = &mondayMorningEvent.Start
	active.OfferEnd = &mondayMorningEvent.End
	active.OfferExpiresAt = &expiresAt

	repo := &fakeWaitlistRepo{
		findActiveOffer: func(_ context.Context, _ uuid.UUID, start, _ time.Time) (*Entry, error) {
			if !start.Equal(mondayMorningEvent.Start) {
				t.Errorf("active-offer lookup for %s, want freed start", start)
			}
			return &active, nil
		},
		// offerEntry deliberately unset: creating a second offer for the
		// same interval must not happen.
	}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, &fakeNotifier{}, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer == nil || offer.Token != token {
		t.Fatalf("retried trigger must return the existing offer, got %+v", offer)
	}
}

func TestHandleCancellation_LockHeldElsewhereIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&fakeWaitlistRepo{}, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{denied: true}, &fakeNotifier{}, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("a held lock must be a quiet no-op, got %v", err)
	}
	if offer != nil {
		t.Fatalf("expected no offer, got %+v", offer)
	}
}

func TestHandleCancellation_SkipsCandidateLostToRace(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := waitingEntry(0, now.Add(-48*time.Hour))
	second := waitingEntry(1, now.Add(-24*time.Hour))

	repo := &fakeWaitlistRepo{
		findActiveOffer: func(_ context.Context, _ uuid.UUID, _, _ time.Time) (*Entry, error) {
			return nil, ErrOfferNotFound
		},
		listMatching: func(_ context.Context, _ MatchQuery) ([]Entry, error) {
			return []Entry{first, second}, nil
		},
		offerEntry: func(_ context.Context, entryID uuid.UUID, token string, start, end, sentAt, expiresAt time.Time) (*Entry, error) {
			if entryID == first.ID {
				// A concurrent staff removal won the first entry.
				return nil, ErrEntryTransitioned
			}
			updated := second
			updated.Status = StatusOffered
			updated.OfferToken = &token
			return &updated, nil
		},
	}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, &fakeNotifier{}, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer == nil || offer.OfferedTo != second.ID {
		t.Fatalf("expected fallback to second candidate, got %+v", offer)
	}
	if offer.RemainingQueue != 0 {
		t.Errorf("remaining queue = %d, want 0", offer.RemainingQueue)
	}
}

func TestHandleCancellation_EmptyQueueYieldsNoOffer(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeWaitlistRepo{
		findActiveOffer: func(_ context.Context, _ uuid.UUID, _, _ time.Time) (*Entry, error) {
			return nil, ErrOfferNotFound
		},
		listMatching: func(_ context.Context, _ MatchQuery) ([]Entry, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, &fakeNotifier{}, now)

	offer, err := svc.HandleCancellation(context.Background(), mondayMorningEvent)
	if err != nil {
		t.Fatalf("HandleCancellation: %v", err)
	}
	if offer != nil {
		t.Fatalf("expected no offer for empty queue, got %+v", offer)
	}
}

func TestExpireOffers_FlipsAndChainsReoffer(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	start := mondayMorningEvent.Start
	end := mondayMorningEvent.End
	sentAt := now.Add(-3 * time.Hour)
	expiredAt := now.Add(-time.Hour)
	token := uuid.NewString()

	overdue := waitingEntry(0, now.Add(-72*time.Hour))
	overdue.Status = StatusOffered
	overdue.OfferToken = &token
	overdue.OfferStart = &start
	overdue.OfferEnd = &end
	overdue.OfferSentAt = &sentAt
	overdue.OfferExpiresAt = &expiredAt

	next := waitingEntry(0, now.Add(-24*time.Hour))

	var expiredIDs []uuid.UUID
	var reoffered []uuid.UUID
	repo := &fakeWaitlistRepo{
		findExpiredOffers: func(_ context.Context, _ time.Time) ([]Entry, error) {
			return []Entry{overdue}, nil
		},
		updateEntryStatus: func(_ context.Context, entryID uuid.UUID, from, to Status) (*Entry, error) {
			if from != StatusOffered || to != StatusExpired {
				t.Errorf("transition %s→%s, want offered→expired", from, to)
			}
			expiredIDs = append(expiredIDs, entryID)
			updated := overdue
			updated.Status = StatusExpired
			return &updated, nil
		},
		findActiveOffer: func(_ context.Context, _ uuid.UUID, _, _ time.Time) (*Entry, error) {
			return nil, ErrOfferNotFound
		},
		listMatching: func(_ context.Context, _ MatchQuery) ([]Entry, error) {
			return []Entry{next}, nil
		},
		offerEntry: func(_ context.Context, entryID uuid.UUID, tok string, s, e, _, _ time.Time) (*Entry, error) {
			if !s.Equal(start) || !e.Equal(end) {
				t.Errorf("re-offer interval %s-%s, want the original freed interval", s, e)
			}
			reoffered = append(reoffered, entryID)
			updated := next
			updated.Status = StatusOffered
			updated.OfferToken = &tok
			return &updated, nil
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, notifier, now)

	if err := svc.ExpireOffers(context.Background()); err != nil {
		t.Fatalf("ExpireOffers: %v", err)
	}

	if len(expiredIDs) != 1 || expiredIDs[0] != overdue.ID {
		t.Fatalf("expected the overdue entry expired, got %v", expiredIDs)
	}
	if len(reoffered) != 1 || reoffered[0] != next.ID {
		t.Fatalf("expected a chained offer to the next entry, got %v", reoffered)
	}
	if len(notifier.offersExpired) != 1 {
		t.Errorf("notifier received %d expiries, want 1", len(notifier.offersExpired))
	}
	if len(notifier.offersSent) != 1 {
		t.Errorf("notifier received %d offers, want 1", len(notifier.offersSent))
	}
}

func TestExpireOffers_ConcurrentAcceptMakesExpiryNoOp(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	start := mondayMorningEvent.Start
	end := mondayMorningEvent.End
	expiredAt := now.Add(-time.Minute)

	entry := waitingEntry(0, now.Add(-24*time.Hour))
	entry.Status = StatusOffered
	entry.OfferStart = &start
	entry.OfferEnd = &end
	entry.OfferExpiresAt = &expiredAt

	repo := &fakeWaitlistRepo{
		findExpiredOffers: func(_ context.Context, _ time.Time) ([]Entry, error) {
			return []Entry{entry}, nil
		},
		updateEntryStatus: func(_ context.Context, _ uuid.UUID, _, _ Status) (*Entry, error) {
			// The accept path won between the scan and this write.
			return nil, ErrEntryTransitioned
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistAuto)}, &fakeLocker{}, notifier, now)

	if err := svc.ExpireOffers(context.Background()); err != nil {
		t.Fatalf("losing the transition race must not error: %v", err)
	}
	if len(notifier.offersExpired) != 0 {
		t.Error("no expiry notification for a lost race")
	}
}

func TestExpireOffers_ManualModeDoesNotChain(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	start := mondayMorningEvent.Start
	end := mondayMorningEvent.End
	expiredAt := now.Add(-time.Minute)

	entry := waitingEntry(0, now.Add(-24*time.Hour))
	entry.Status = StatusOffered
	entry.OfferStart = &start
	entry.OfferEnd = &end
	entry.OfferExpiresAt = &expiredAt

	repo := &fakeWaitlistRepo{
		findExpiredOffers: func(_ context.Context, _ time.Time) ([]Entry, error) {
			return []Entry{entry}, nil
		},
		updateEntryStatus: func(_ context.Context, _ uuid.UUID, _, _ Status) (*Entry, error) {
			updated := entry
			updated.Status = StatusExpired
			return &updated, nil
		},
		// listMatching unset: a chained offer attempt would panic.
	}
	locker := &fakeLocker{}
	svc := newTestService(repo, &fakeDirectory{practitioner: wlPractitioner(schedule.WaitlistManual)}, locker, &fakeNotifier{}, now)

	if err := svc.ExpireOffers(context.Background()); err != nil {
		t.Fatalf("ExpireOffers: %v", err)
	}
	if locker.calls != 0 {
		t.Error("manual mode must not attempt a re-offer")
	}
}

func TestAcceptOffer_ExpiredFailsWithConflict(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := &fakeWaitlistRepo{
		acceptOffer: func(_ context.Context, _ string, _ time.Time) (*Entry, error) {
			return nil, ErrEntryTransitioned
		},
	}
	svc := newTestService(repo, &fakeDirectory{}, &fakeLocker{}, &fakeNotifier{}, now)

	_, err := svc.AcceptOffer(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("expected ErrOfferExpired, got %v", err)
	}
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("expected conflict kind, got %v", apperr.KindOf(err))
	}
}

func TestAcceptOffer_UnknownTokenIsNotFound(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := &fakeWaitlistRepo{
		acceptOffer: func(_ context.Context, _ string, _ time.Time) (*Entry, error) {
			return nil, ErrOfferNotFound
		},
	}
	svc := newTestService(repo, &fakeDirectory{}, &fakeLocker{}, &fakeNotifier{}, now)

	_, err := svc.AcceptOffer(context.Background(), uuid.NewString())
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestAcceptOffer_SuccessUsesServiceClock(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	var seenNow time.Time
	booked := waitingEntry(0, now.Add(-24*time.Hour))
	booked.Status = StatusBooked

	repo := &fakeWaitlistRepo{
		acceptOffer: func(_ context.Context, _ string, writeNow time.Time) (*Entry, error) {
			seenNow = writeNow
			return &booked, nil
		},
	}
	svc := newTestService(repo, &fakeDirectory{}, &fakeLocker{}, &fakeNotifier{}, now)

	entry, err := svc.AcceptOffer(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if entry.Status != StatusBooked {
		t.Fatalf("status = %s, want booked", entry.Status)
	}
	// The accept path and the sweep must share the clock that decides
	// whether the TTL has passed.
	if !seenNow.Equal(now) {
		t.Fatalf("accept write saw now=%s, want the service clock %s", seenNow, now)
	}
}

func TestRegister_Validation(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	created := waitingEntry(0, now)
	repo := &fakeWaitlistRepo{
		createEntry: func(_ context.Context, e Entry) (*Entry, error) {
			if e.Status != StatusWaiting {
				t.Errorf("new entries must start waiting, got %s", e.Status)
			}
			if e.TimePreference != PreferAny {
				t.Errorf("empty preference must default to any, got %s", e.TimePreference)
			}
			return &created, nil
		},
	}
	svc := newTestService(repo, &fakeDirectory{}, &fakeLocker{}, &fakeNotifier{}, now)

	if _, err := svc.Register(context.Background(), Entry{
		PreferredWeekdays: []time.Weekday{time.Monday},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Register(context.Background(), Entry{}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("empty weekdays must be a validation error, got %v", err)
	}

	if _, err := svc.Register(context.Background(), Entry{
		PreferredWeekdays: []time.Weekday{time.Weekday(8)},
	}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("bad weekday must be a validation error, got %v", err)
	}

	if _, err := svc.Register(context.Background(), Entry{
		PreferredWeekdays: []time.Weekday{time.Monday},
		TimePreference:    "evening",
	}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("bad preference must be a validation error, got %v", err)
	}
}
