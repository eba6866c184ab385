package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"glowbook/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingToken.Error())
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type serviceRequest struct {
	ProviderID      string  `json:"provider_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Location        string  `json:"location"`
	ImageURL        string  `json:"image_url"`
	IsActive        *bool   `json:"is_active"`
}

func (req serviceRequest) toModel() *models.Service {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Service{
		ProviderID:      strings.TrimSpace(req.ProviderID),
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		ImageURL:        req.ImageURL,
		IsActive:        active,
	}
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	filter := models.ServiceFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}

	var err error
	if filter.MinPrice, err = queryFloat(r, "min_price"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_price")
		return
	}
	if filter.MaxPrice, err = queryFloat(r, "max_price"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_price")
		return
	}
	if filter.IsActive, err = queryBool(r, "is_active"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid is_active")
		return
	}

	services, err := s.svc.Catalog.ListServices(r.Context(), filter)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// handleProvidersOffering lists providers offering an active service that
// matches ?service= (title substring) and ?category=.
func (s *HTTPServer) handleProvidersOffering(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providers, err := s.svc.Catalog.ProvidersOffering(r.Context(), q.Get("service"), q.Get("category"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "serviceID")
	if !ok {
		return
	}
	svc, err := s.svc.Catalog.GetService(r.Context(), id)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handlePriceRange(w http.ResponseWriter, r *http.Request) {
	pr, err := s.svc.Catalog.PriceRange(r.Context(), pathParam(r, "title"))
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (s *HTTPServer) handleServiceReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "serviceID")
	if !ok {
		return
	}
	reviews, err := s.svc.Reviews.ServiceReviews(r.Context(), id)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	svc := req.toModel()
	if err := s.svc.Catalog.CreateService(r.Context(), actor, svc); err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "serviceID")
	if !ok {
		return
	}
	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	svc := req.toModel()
	svc.ID = id
	if err := s.svc.Catalog.UpdateService(r.Context(), actor, svc); err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "serviceID")
	if !ok {
		return
	}
	if err := s.svc.Catalog.DeleteService(r.Context(), actor, id); err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	BookingID int64  `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BookingID <= 0 {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	review, err := s.svc.Reviews.CreateReview(r.Context(), actor, req.BookingID, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(w, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
