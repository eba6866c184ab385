package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// slotSelection is how a client picks an appointment: a date plus either a
// slot object or a "HH:MM" start, or a single scheduled_at instant.
type slotSelection struct {
	Date        string       `json:"date"`
	Slot        *models.Slot `json:"slot"`
	Time        string       `json:"time"`
	ScheduledAt *time.Time   `json:"scheduled_at"`
}

var errAmbiguousSelection = errors.New("scheduled_at cannot be combined with date, slot or time")

func (sel slotSelection) resolve(loc *time.Location) (string, *models.Slot, error) {
	date := strings.TrimSpace(sel.Date)
	if sel.ScheduledAt != nil {
		if date != "" || sel.Slot != nil || strings.TrimSpace(sel.Time) != "" {
			return "", nil, errAmbiguousSelection
		}
		d, t := schedule.Split(*sel.ScheduledAt, loc)
		slot := models.SlotAt(t)
		return d, &slot, nil
	}
	if sel.Slot != nil {
		return date, sel.Slot, nil
	}
	if raw := strings.TrimSpace(sel.Time); raw != "" {
		t, err := models.ParseTimeOfDay(raw)
		if err != nil {
			return "", nil, err
		}
		slot := models.SlotAt(t)
		return date, &slot, nil
	}
	return date, nil, nil
}

type createBookingRequest struct {
	ServiceID  int64  `json:"service_id"`
	ProviderID string `json:"provider_id"`
	Notes      string `json:"notes"`
	slotSelection
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, slot, err := req.resolve(s.svc.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.svc.Bookings.CreateBooking(r.Context(), actor, booking.Request{
		ProviderID: strings.TrimSpace(req.ProviderID),
		ServiceID:  req.ServiceID,
		Date:       date,
		Slot:       slot,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var status *models.Status
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}

	party := models.BookingParty(strings.TrimSpace(q.Get("as")))
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actor, party, status)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.GetBooking(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type rescheduleRequest struct {
	Notes *string `json:"notes"`
	slotSelection
}

func (s *HTTPServer) handleRescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, slot, err := req.resolve(s.svc.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.svc.Bookings.RescheduleBooking(r.Context(), actor, id, date, slot, req.Notes)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type statusRequest struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		b   *models.Booking
		err error
	)
	switch {
	case strings.TrimSpace(req.Action) != "":
		event, perr := booking.ParseEvent(strings.TrimSpace(req.Action))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		b, err = s.svc.Bookings.Transition(r.Context(), actor, id, event)
	case strings.TrimSpace(req.Status) != "":
		to, perr := models.ParseStatus(strings.TrimSpace(req.Status))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		b, err = s.svc.Bookings.UpdateStatus(r.Context(), actor, id, to)
	default:
		writeError(w, http.StatusBadRequest, "action or status is required")
		return
	}
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.CancelBooking(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
