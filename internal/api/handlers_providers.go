package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"glowbook/internal/export"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

const (
	maxAvailabilityBody = 1 << 20
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) handleProviderDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.svc.Providers.Details(r.Context(), pathParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *HTTPServer) handleProviderServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.ProviderServices(r.Context(), pathParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleProviderAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := s.svc.Availability.ProviderAvailability(r.Context(), pathParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": availability})
}

func (s *HTTPServer) handleFreeSlots(w http.ResponseWriter, r *http.Request) {
	date := pathParam(r, "date")
	slots, err := s.svc.Availability.FreeSlots(r.Context(), pathParam(r, "providerID"), date)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (s *HTTPServer) handleBookableDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.Availability.BookableDates(r.Context(), pathParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func (s *HTTPServer) handleProviderReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.svc.Reviews.ProviderReviews(r.Context(), pathParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

type profileRequest struct {
	DisplayName       string   `json:"display_name"`
	Bio               string   `json:"bio"`
	YearsOfExperience int      `json:"years_of_experience"`
	Location          string   `json:"location"`
	Specialties       []string `json:"specialties"`
	TelegramChatID    int64    `json:"telegram_chat_id"`
}

func (req profileRequest) toModel(userID string) *models.ProviderProfile {
	return &models.ProviderProfile{
		UserID:            userID,
		DisplayName:       req.DisplayName,
		Bio:               req.Bio,
		YearsOfExperience: req.YearsOfExperience,
		Location:          req.Location,
		Specialties:       req.Specialties,
		TelegramChatID:    req.TelegramChatID,
	}
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	profile, err := s.svc.Providers.GetProfile(r.Context(), actor)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	s.saveProfile(w, r, true)
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	s.saveProfile(w, r, false)
}

func (s *HTTPServer) saveProfile(w http.ResponseWriter, r *http.Request, create bool) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile := req.toModel(actor.UserID)
	var err error
	statusCode := http.StatusOK
	if create {
		err = s.svc.Providers.CreateProfile(r.Context(), actor, profile)
		statusCode = http.StatusCreated
	} else {
		err = s.svc.Providers.UpdateProfile(r.Context(), actor, profile)
	}
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, statusCode, profile)
}

func readRaw(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAvailabilityBody))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return body, true
}

// handleReplaceAvailability rewrites every date present in the body; dates
// that are absent keep their entries.
func (s *HTTPServer) handleReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	entries, err := schedule.ParseAvailabilityMap(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.Availability.ReplaceAvailability(r.Context(), actor, entries); err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	availability, err := s.svc.Availability.ProviderAvailability(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": availability})
}

func (s *HTTPServer) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	date := pathParam(r, "date")
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	intervals, err := schedule.ParseIntervals(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.Availability.SetAvailability(r.Context(), actor, date, intervals); err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	if intervals == nil {
		intervals = []models.Interval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "intervals": intervals})
}

// handleExportBookings streams the provider's bookings between from and to
// (inclusive civil dates) as an XLSX workbook.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	fromDate, err := schedule.ParseDate(strings.TrimSpace(q.Get("from")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	toDate, err := schedule.ParseDate(strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}
	if toDate.Before(fromDate) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	loc := s.svc.Location
	from := time.Date(fromDate.Year(), fromDate.Month(), fromDate.Day(), 0, 0, 0, 0, loc)
	to := time.Date(toDate.Year(), toDate.Month(), toDate.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	bookings, err := s.svc.Bookings.ProviderBookingsInRange(r.Context(), actor, from, to)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}

	wb, err := export.ProviderBookings(fromDate, toDate, loc, bookings)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	defer wb.Close()

	if s.svc.ExportDir != "" {
		if path, err := wb.SaveTo(s.svc.ExportDir); err != nil {
			s.log.Warn().Err(err).Msg("failed to archive export")
		} else {
			s.log.Info().Str("path", path).Str("provider_id", actor.UserID).Msg("export archived")
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+wb.Name+`"`)
	w.WriteHeader(http.StatusOK)
	if err := wb.Write(w); err != nil {
		s.log.Error().Err(err).Msg("failed to write export")
	}
}
