package handler

import (
	"errors"
	"net/http"
	"time"

	"adspace/internal/pricing"
	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	apperrors "adspace/pkg/errors"
	httputil "adspace/pkg/http"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

// QuoteRequest prices either a running start date or a month picked from a
// calendar (Year and Month set, month tier only).
type QuoteRequest struct {
	MediaID   string `json:"mediaId" validate:"required_without=BasePrice"`
	BasePrice int64  `json:"basePrice" validate:"omitempty,gt=0"`
	Tier      string `json:"tier" validate:"required,oneof=biweek month"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=120"`
	StartDate string `json:"startDate" validate:"required_without=Year"`
	Year      int    `json:"year" validate:"omitempty,min=2000,max=2200"`
	Month     int    `json:"month" validate:"omitempty,min=1,max=12"`
}

type QuoteResponse struct {
	Tier        string `json:"tier"`
	Quantity    int    `json:"quantity"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Total       int64  `json:"total"`
	PlatformFee int64  `json:"platformFee"`
	OwnerAmount int64  `json:"ownerAmount"`
}

type QuoteHandler struct {
	media    repository.MediaRepository
	schedule pricing.FeeSchedule
	validate *validator.Validate
	log      *logger.Logger
}

func NewQuoteHandler(media repository.MediaRepository, schedule pricing.FeeSchedule, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{
		media:    media,
		schedule: schedule,
		validate: validator.New(),
		log:      log,
	}
}

func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req QuoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	resp, err := h.quote(r, req)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *QuoteHandler) quote(r *http.Request, req QuoteRequest) (*QuoteResponse, error) {
	if err := h.validate.Struct(req); err != nil {
		return nil, apperrors.Validation("invalid quote request", map[string]any{"error": err.Error()})
	}

	tier, err := pricing.ParseTier(req.Tier)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	base := req.BasePrice
	if req.MediaID != "" {
		media, err := h.media.FindByID(r.Context(), req.MediaID)
		switch {
		case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
			return nil, apperrors.NotFoundWithID("Media", req.MediaID)
		case err != nil:
			return nil, apperrors.Internal("failed to load media", err)
		}
		base = media.BasePrice
	}

	var quote pricing.Quote
	if req.Year != 0 {
		if req.Month == 0 {
			return nil, apperrors.Validation("month is required with year", nil)
		}
		if tier != pricing.TierMonth {
			return nil, apperrors.Validation("year/month selection is only valid for the month tier", nil)
		}
		quote, err = pricing.MonthPickerQuote(base, req.Year, time.Month(req.Month), req.Quantity)
	} else {
		start, perr := model.ParseDate(req.StartDate)
		if perr != nil {
			return nil, apperrors.Validation(perr.Error(), nil)
		}
		quote, err = pricing.ComputeTotal(base, tier, req.Quantity, start)
	}
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	split := h.schedule.Split(quote.Total)
	return &QuoteResponse{
		Tier:        string(quote.Tier),
		Quantity:    quote.Quantity,
		StartDate:   model.FormatDate(quote.Start),
		EndDate:     model.FormatDate(quote.End),
		Total:       quote.Total,
		PlatformFee: split.PlatformFee,
		OwnerAmount: split.OwnerAmount,
	}, nil
}

// InferQuantity turns a dragged calendar range back into a unit count.
func (h *QuoteHandler) InferQuantity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tier, err := pricing.ParseTier(r.URL.Query().Get("tier"))
	if err != nil {
		h.writeError(w, "InferQuantity", apperrors.InvalidInput(err.Error()))
		return
	}
	start, err := httputil.QueryDate(r, "start")
	if err != nil {
		h.writeError(w, "InferQuantity", err)
		return
	}
	end, err := httputil.QueryDate(r, "end")
	if err != nil {
		h.writeError(w, "InferQuantity", err)
		return
	}

	resp := map[string]int{"quantity": pricing.InferQuantity(start, end, tier)}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "InferQuantity", "operation", "WriteSuccess", "error", err)
	}
}

func (h *QuoteHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *QuoteHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/pricing/quote", h.Quote)
	router.GET("/pricing/quantity", h.InferQuantity)
}
