// Package calendar talks to the external-calendar collaborator that
// exposes connected calendars as opaque busy blocks. The feed is a
// best-effort source: callers must be prepared for errors and degrade.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/slotline/booking-core/internal/schedule"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type busyBlockPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type busyFeedResponse struct {
	Blocks []busyBlockPayload `json:"blocks"`
}

// BusyBlocks fetches the practitioner's external busy intervals in
// [from, to). Implements schedule.BusyFeed.
func (c *Client) BusyBlocks(ctx context.Context, businessID, practitionerID uuid.UUID, from, to time.Time) ([]schedule.BusyBlock, error) {
	q := url.Values{}
	q.Set("business_id", businessID.String())
	q.Set("practitioner_id", practitionerID.String())
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/busy?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build busy feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch busy feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("busy feed returned status %d", resp.StatusCode)
	}

	var payload busyFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode busy feed response: %w", err)
	}

	blocks := make([]schedule.BusyBlock, 0, len(payload.Blocks))
	for _, b := range payload.Blocks {
		if !b.End.After(b.Start) {
			continue
		}
		blocks = append(blocks, schedule.BusyBlock{Start: b.Start, End: b.End})
	}
	return blocks, nil
}

var _ schedule.BusyFeed = (*Client)(nil)
