package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotline/booking-core/internal/schedule"
	"github.com/slotline/booking-core/internal/waitlist"
)

func listSlotsHandler(svc *schedule.SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		businessID, err := uuid.Parse(q.Get("business_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(q.Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		query := schedule.SlotQuery{
			BusinessID: businessID,
			ServiceID:  serviceID,
			Mode:       schedule.AppointmentMode(q.Get("mode")),
		}

		if raw := q.Get("practitioner_id"); raw != "" {
			pracID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			query.PractitionerID = &pracID
		}

		query.From, err = schedule.ParseDate(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		query.To, err = schedule.ParseDate(q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}

		slots, err := svc.FindSlots(r.Context(), query)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := SlotsResponse{Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, slotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// cancelBookingHandler cancels a booking and immediately runs the
// waitlist over the freed interval; the offer, when one goes out, rides
// back in the response.
func cancelBookingHandler(repo schedule.Repository, wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		businessID, err := uuid.Parse(req.BusinessID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}
		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "booking_id must be a valid UUID")
			return
		}

		booking, err := repo.CancelBooking(r.Context(), businessID, bookingID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		offer, err := wl.HandleCancellation(r.Context(), waitlist.CancellationEvent{
			BookingID:      booking.ID,
			BusinessID:     booking.BusinessID,
			PractitionerID: booking.PractitionerID,
			ServiceID:      booking.ServiceID,
			Start:          booking.StartAt,
			End:            booking.EndAt,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancellationResponse{
			BookingID: booking.ID,
			Status:    string(booking.Status),
			Offer:     offerResponse(offer),
		})
	}
}

func createWaitlistEntryHandler(wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateWaitlistEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry := waitlist.Entry{
			TimePreference: waitlist.TimePreference(req.TimePreference),
			Priority:       req.Priority,
			Notes:          req.Notes,
		}

		var err error
		if entry.BusinessID, err = uuid.Parse(req.BusinessID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}
		if entry.PractitionerID, err = uuid.Parse(req.PractitionerID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		if entry.ServiceID, err = uuid.Parse(req.ServiceID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		if entry.ClientID, err = uuid.Parse(req.ClientID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}

		entry.PreferredWeekdays = make([]time.Weekday, len(req.PreferredWeekdays))
		for i, wd := range req.PreferredWeekdays {
			entry.PreferredWeekdays[i] = time.Weekday(wd)
		}

		created, err := wl.Register(r.Context(), entry)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entryResponse(*created))
	}
}

func listWaitlistHandler(repo waitlist.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		businessID, err := uuid.Parse(q.Get("business_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}

		var pracID *uuid.UUID
		if raw := q.Get("practitioner_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			pracID = &id
		}

		var status *waitlist.Status
		if raw := q.Get("status"); raw != "" {
			s := waitlist.Status(raw)
			status = &s
		}

		entries, err := repo.ListEntries(r.Context(), businessID, pracID, status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := WaitlistEntriesResponse{Entries: make([]WaitlistEntryResponse, 0, len(entries))}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, entryResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func acceptOfferHandler(wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := wl.AcceptOffer(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryResponse(*entry))
	}
}

func declineOfferHandler(wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := wl.DeclineOffer(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryResponse(*entry))
	}
}

func requeueEntryHandler(wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, entryID, ok := entryParams(w, r)
		if !ok {
			return
		}
		entry, err := wl.Requeue(r.Context(), businessID, entryID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryResponse(*entry))
	}
}

func removeEntryHandler(wl *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, entryID, ok := entryParams(w, r)
		if !ok {
			return
		}
		entry, err := wl.Remove(r.Context(), businessID, entryID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryResponse(*entry))
	}
}

func entryParams(w http.ResponseWriter, r *http.Request) (businessID, entryID uuid.UUID, ok bool) {
	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	entryID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return businessID, entryID, true
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func replaceWindowsHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pracID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		var req ReplaceWindowsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		businessID, err := uuid.Parse(req.BusinessID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business_id must be a valid UUID")
			return
		}

		weekly := make(schedule.WeeklySchedule, len(req.Windows))
		for name, windows := range req.Windows {
			weekday, ok := weekdayNames[strings.ToLower(name)]
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "unknown weekday "+name)
				return
			}
			for _, win := range windows {
				start, err := schedule.ParseTimeOfDay(win.Start)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_window", "start must be HH:MM")
					return
				}
				end, err := schedule.ParseTimeOfDay(win.End)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_window", "end must be HH:MM")
					return
				}
				weekly[weekday] = append(weekly[weekday], schedule.TimeWindow{Start: start, End: end})
			}
		}

		if err := repo.ReplaceWeeklyWindows(r.Context(), businessID, pracID, weekly); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
