package handler

import (
	"net/http"

	"adspace/internal/escrow/service"
	apperrors "adspace/pkg/errors"
	httputil "adspace/pkg/http"
	"adspace/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

type ReleaseRequest struct {
	ReservationID string `json:"reservationId" validate:"required,mongodb"`
}

type ReleaseHandler struct {
	service  service.EscrowService
	validate *validator.Validate
	log      *logger.Logger
}

func NewReleaseHandler(service service.EscrowService, log *logger.Logger) *ReleaseHandler {
	return &ReleaseHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

func (h *ReleaseHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ReleaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, apperrors.Validation("reservationId must be a valid reservation id", map[string]any{
			"reservationId": req.ReservationID,
		}))
		return
	}

	result, err := h.service.ReleasePayment(r.Context(), req.ReservationID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReleaseHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReleaseHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/release-payment", h.Release)
}
