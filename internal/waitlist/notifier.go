package waitlist

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier receives state-transition signals. The delivery channel
// (email, SMS, dashboard) lives outside this core; the default
// implementation just logs.
type Notifier interface {
	OfferSent(ctx context.Context, entry Entry, offer Offer)
	OfferExpired(ctx context.Context, entry Entry)
	// WaitingMatched is the manual-mode side channel: a cancellation
	// matched count waiting entries and nothing changed state.
	WaitingMatched(ctx context.Context, ev CancellationEvent, count int)
}

type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OfferSent(_ context.Context, entry Entry, offer Offer) {
	n.logger.Info().
		Str("entry_id", entry.ID.String()).
		Str("client_id", entry.ClientID.String()).
		Time("start", offer.Start).
		Time("expires_at", offer.ExpiresAt).
		Int("remaining_queue", offer.RemainingQueue).
		Msg("waitlist offer sent")
}

func (n *LogNotifier) OfferExpired(_ context.Context, entry Entry) {
	n.logger.Info().
		Str("entry_id", entry.ID.String()).
		Msg("waitlist offer expired")
}

func (n *LogNotifier) WaitingMatched(_ context.Context, ev CancellationEvent, count int) {
	n.logger.Info().
		Str("practitioner_id", ev.PractitionerID.String()).
		Time("start", ev.Start).
		Int("matching_entries", count).
		Msg("cancellation matched waiting entries (manual mode)")
}

var _ Notifier = (*LogNotifier)(nil)
