package handler

import (
	"io"
	"net/http"

	"adspace/internal/webhook/service"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/gateway"
	httputil "adspace/pkg/http"
	"adspace/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type WebhookHandler struct {
	service service.WebhookService
	log     *logger.Logger
}

func NewWebhookHandler(service service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log,
	}
}

type ReceivedResponse struct {
	Received bool `json:"received"`
}

// Payment receives gateway events. The body is read raw because the signature
// covers the exact bytes sent.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, apperrors.InvalidInput("failed to read request body"))
		return
	}

	if err := h.service.Handle(r.Context(), payload, r.Header.Get(gateway.SignatureHeader)); err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, ReceivedResponse{Received: true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Payment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Payment", "operation", "WriteError", "error", writeErr)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/webhooks/payment", h.Payment)
}
