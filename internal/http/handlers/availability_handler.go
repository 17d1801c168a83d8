package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/museum-tickets/internal/capacity"
	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/http/response"
	"github.com/diagnosis/museum-tickets/pkg/logger"
)

// AvailabilityHandler reports how many places are left on a visit date.
type AvailabilityHandler struct {
	capacity *capacity.Controller
}

func NewAvailabilityHandler(c *capacity.Controller) *AvailabilityHandler {
	return &AvailabilityHandler{capacity: c}
}

func (h *AvailabilityHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.get)
	return r
}

func (h *AvailabilityHandler) get(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		response.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	a, err := h.capacity.Availability(r.Context(), date)
	if err != nil {
		logger.ErrorContext(r.Context(), "Availability lookup failed", "error", err)
		response.InternalError(w, "Internal server error")
		return
	}
	response.WriteJSON(w, http.StatusOK, a)
}
