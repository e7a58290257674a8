package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Bucket assigns an instant to the morning or afternoon half of its
// local day. cutoffHour is the first afternoon hour (12 by default).
func Bucket(t time.Time, loc *time.Location, cutoffHour int) TimePreference {
	if t.In(loc).Hour() < cutoffHour {
		return PreferMorning
	}
	return PreferAfternoon
}

// Matcher finds queued entries whose day/time preferences fit a freed
// interval.
type Matcher struct {
	repo       Repository
	cutoffHour int
}

func NewMatcher(repo Repository, cutoffHour int) *Matcher {
	return &Matcher{repo: repo, cutoffHour: cutoffHour}
}

func (m *Matcher) queryFor(businessID, practitionerID, serviceID uuid.UUID, start time.Time, loc *time.Location) MatchQuery {
	local := start.In(loc)
	return MatchQuery{
		BusinessID:     businessID,
		PractitionerID: practitionerID,
		ServiceID:      serviceID,
		Weekday:        local.Weekday(),
		Bucket:         Bucket(start, loc, m.cutoffHour),
	}
}

// Candidates returns matching waiting entries, FIFO with priority
// override: priority ascending, then created_at ascending.
func (m *Matcher) Candidates(ctx context.Context, businessID, practitionerID, serviceID uuid.UUID, start time.Time, loc *time.Location) ([]Entry, error) {
	return m.repo.ListMatching(ctx, m.queryFor(businessID, practitionerID, serviceID, start, loc))
}

// CountCandidates is the manual-mode side channel: how many waiting
// entries match, with no state change.
func (m *Matcher) CountCandidates(ctx context.Context, businessID, practitionerID, serviceID uuid.UUID, start time.Time, loc *time.Location) (int, error) {
	return m.repo.CountMatching(ctx, m.queryFor(businessID, practitionerID, serviceID, start, loc))
}
