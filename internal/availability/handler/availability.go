package handler

import (
	"net/http"
	"time"

	"adspace/internal/availability/service"
	httputil "adspace/pkg/http"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
	now     func() time.Time
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, log: log, now: time.Now}
}

type OccupiedDatesResponse struct {
	Dates              []string `json:"dates"`
	NextAvailableStart string   `json:"nextAvailableStart"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, err := httputil.QueryDate(r, "start")
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}
	end, err := httputil.QueryDate(r, "end")
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}

	hint := h.service.Hint(r.Context(), ps.ByName("id"), start, end)
	if err := httputil.WriteSuccess(w, hint); err != nil {
		h.log.Error("failed to write success response", "handler", "Check", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) OccupiedDates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	mediaID := ps.ByName("id")

	days, err := h.service.OccupiedDates(r.Context(), mediaID)
	if err != nil {
		h.writeError(w, "OccupiedDates", err)
		return
	}
	next, err := h.service.NextAvailableStart(r.Context(), mediaID, h.now())
	if err != nil {
		h.writeError(w, "OccupiedDates", err)
		return
	}

	resp := OccupiedDatesResponse{
		Dates:              make([]string, len(days)),
		NextAvailableStart: model.FormatDate(next),
	}
	for i, d := range days {
		resp.Dates[i] = model.FormatDate(d)
	}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "OccupiedDates", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/media/:id/availability", h.Check)
	router.GET("/media/:id/occupied-dates", h.OccupiedDates)
}
