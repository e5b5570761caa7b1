package handler

import (
	"net/http"

	"adspace/internal/checkout/service"
	"adspace/internal/checkout/validator"
	httputil "adspace/pkg/http"
	"adspace/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type CheckoutHandler struct {
	service service.CheckoutService
	log     *logger.Logger
}

func NewCheckoutHandler(service service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		log:     log,
	}
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

func (h *CheckoutHandler) Single(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.SingleCheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Single", err)
		return
	}

	result, err := h.service.CheckoutSingle(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Single", err)
		return
	}

	if err := httputil.WriteSuccess(w, CheckoutResponse{URL: result.URL}); err != nil {
		h.log.Error("failed to write success response", "handler", "Single", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CheckoutHandler) Campaign(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.CampaignCheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Campaign", err)
		return
	}

	result, err := h.service.CheckoutCampaign(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Campaign", err)
		return
	}

	if err := httputil.WriteSuccess(w, CheckoutResponse{URL: result.URL}); err != nil {
		h.log.Error("failed to write success response", "handler", "Campaign", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CheckoutHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CheckoutHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/checkout/single", h.Single)
	router.POST("/checkout/campaign", h.Campaign)
}
