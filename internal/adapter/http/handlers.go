package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/mirado-dev/delestage/internal/domain"
	"github.com/mirado-dev/delestage/internal/scheduling"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ── Requests ──

type neighborhoodRequest struct {
	Name     string `json:"name" validate:"required"`
	District string `json:"district" validate:"required"`
}

type outageRequest struct {
	NeighborhoodID int64    `json:"neighborhoodId" validate:"required"`
	Date           string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartHour      *float64 `json:"startHour" validate:"required"`
	EndHour        *float64 `json:"endHour" validate:"required"`
	Reason         string   `json:"reason"`
}

type outageUpdateRequest struct {
	NeighborhoodID *int64   `json:"neighborhoodId"`
	Date           *string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartHour      *float64 `json:"startHour"`
	EndHour        *float64 `json:"endHour"`
	Reason         *string  `json:"reason"`
}

func (r outageUpdateRequest) toUpdate() scheduling.OutageUpdate {
	return scheduling.OutageUpdate{
		NeighborhoodID: r.NeighborhoodID,
		Date:           r.Date,
		StartHour:      r.StartHour,
		EndHour:        r.EndHour,
		Reason:         r.Reason,
	}
}

type bulkUpdateRequest struct {
	IDs                 []int64 `json:"ids" validate:"required,min=1"`
	outageUpdateRequest         // shared update fields
}

type bulkResultResponse struct {
	ID     int64          `json:"id"`
	Outage *domain.Outage `json:"outage,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ── Neighborhoods ──

func (s *Server) handleListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNeighborhoods(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Neighborhood{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetNeighborhood(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := s.store.GetNeighborhood(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleCreateNeighborhood(w http.ResponseWriter, r *http.Request) {
	var req neighborhoodRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.store.CreateNeighborhood(r.Context(), domain.Neighborhood{Name: req.Name, District: req.District})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleUpdateNeighborhood(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req neighborhoodRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.store.UpdateNeighborhood(r.Context(), domain.Neighborhood{ID: id, Name: req.Name, District: req.District})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNeighborhood(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteNeighborhood(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Outages ──

func (s *Server) handleListOutages(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListOutages(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Outage{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListNeighborhoodOutages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	list, err := s.store.ListOutagesByNeighborhood(r.Context(), id, r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Outage{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateOutage(w http.ResponseWriter, r *http.Request) {
	var req outageRequest
	if !s.decode(w, r, &req) {
		return
	}
	o, err := s.service.Create(r.Context(), domain.Outage{
		NeighborhoodID: req.NeighborhoodID,
		Date:           req.Date,
		StartHour:      *req.StartHour,
		EndHour:        *req.EndHour,
		Reason:         req.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleUpdateOutage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req outageUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	o, err := s.service.Update(r.Context(), id, req.toUpdate())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleBulkUpdateOutages(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	results := s.service.BulkUpdate(r.Context(), req.IDs, req.toUpdate())

	resp := make([]bulkResultResponse, 0, len(results))
	for _, res := range results {
		item := bulkResultResponse{ID: res.ID, Outage: res.Outage}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteOutage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Schedules and aggregates ──

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.service.Schedules(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := s.service.Stats(r.Context(), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.service.Dates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// ── Helpers ──

// decode unmarshals and validates a JSON request body. On failure it writes a
// 400 response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "invalid field " + verrs[0].Field(),
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to status codes; anything unexpected is a 500
// with the detail kept out of the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, scheduling.ErrInvalidInterval):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
