package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotline/booking-core/internal/schedule"
	"github.com/slotline/booking-core/internal/waitlist"
)

type SlotResponse struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
}

type SlotsResponse struct {
	Slots []SlotResponse `json:"slots"`
}

type CancelBookingRequest struct {
	BusinessID string `json:"business_id"`
	BookingID  string `json:"booking_id"`
}

type OfferResponse struct {
	EntryID        uuid.UUID `json:"entry_id"`
	ClientID       uuid.UUID `json:"client_id"`
	Token          string    `json:"token"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	ExpiresAt      time.Time `json:"expires_at"`
	RemainingQueue int       `json:"remaining_queue"`
}

type CancellationResponse struct {
	BookingID uuid.UUID      `json:"booking_id"`
	Status    string         `json:"status"`
	Offer     *OfferResponse `json:"offer,omitempty"`
}

type CreateWaitlistEntryRequest struct {
	BusinessID        string `json:"business_id"`
	PractitionerID    string `json:"practitioner_id"`
	ServiceID         string `json:"service_id"`
	ClientID          string `json:"client_id"`
	PreferredWeekdays []int  `json:"preferred_weekdays"`
	TimePreference    string `json:"time_preference"`
	Priority          int    `json:"priority"`
	Notes             string `json:"notes"`
}

type WaitlistEntryResponse struct {
	ID                uuid.UUID  `json:"id"`
	BusinessID        uuid.UUID  `json:"business_id"`
	PractitionerID    uuid.UUID  `json:"practitioner_id"`
	ServiceID         uuid.UUID  `json:"service_id"`
	ClientID          uuid.UUID  `json:"client_id"`
	PreferredWeekdays []int      `json:"preferred_weekdays"`
	TimePreference    string     `json:"time_preference"`
	Priority          int        `json:"priority"`
	Status            string     `json:"status"`
	Notes             string     `json:"notes,omitempty"`
	OfferToken        *string    `json:"offer_token,omitempty"`
	OfferStart        *time.Time `json:"offer_start,omitempty"`
	OfferEnd          *time.Time `json:"offer_end,omitempty"`
	OfferExpiresAt    *time.Time `json:"offer_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type WaitlistEntriesResponse struct {
	Entries []WaitlistEntryResponse `json:"entries"`
}

type WindowPayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ReplaceWindowsRequest carries a full weekly pattern keyed by lowercase
// weekday name; the replace is all-or-nothing.
type ReplaceWindowsRequest struct {
	BusinessID string                     `json:"business_id"`
	Windows    map[string][]WindowPayload `json:"windows"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func slotResponse(s schedule.Slot) SlotResponse {
	return SlotResponse{
		PractitionerID: s.PractitionerID,
		Date:           s.Date.String(),
		StartTime:      s.StartTime.String(),
		EndTime:        s.EndTime.String(),
		StartAt:        s.StartAt,
		EndAt:          s.EndAt,
	}
}

func offerResponse(o *waitlist.Offer) *OfferResponse {
	if o == nil {
		return nil
	}
	return &OfferResponse{
		EntryID:        o.OfferedTo,
		ClientID:       o.ClientID,
		Token:          o.Token,
		Start:          o.Start,
		End:            o.End,
		ExpiresAt:      o.ExpiresAt,
		RemainingQueue: o.RemainingQueue,
	}
}

func entryResponse(e waitlist.Entry) WaitlistEntryResponse {
	weekdays := make([]int, len(e.PreferredWeekdays))
	for i, wd := range e.PreferredWeekdays {
		weekdays[i] = int(wd)
	}
	return WaitlistEntryResponse{
		ID:                e.ID,
		BusinessID:        e.BusinessID,
		PractitionerID:    e.PractitionerID,
		ServiceID:         e.ServiceID,
		ClientID:          e.ClientID,
		PreferredWeekdays: weekdays,
		TimePreference:    string(e.TimePreference),
		Priority:          e.Priority,
		Status:            string(e.Status),
		Notes:             e.Notes,
		OfferToken:        e.OfferToken,
		OfferStart:        e.OfferStart,
		OfferEnd:          e.OfferEnd,
		OfferExpiresAt:    e.OfferExpiresAt,
		CreatedAt:         e.CreatedAt,
	}
}
