package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"adspace/pkg/logger"
	"adspace/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Fields returns field -> message for error details.
func (v ValidationErrors) Fields() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type SingleCheckoutRequest struct {
	MediaID       string `json:"mediaId" validate:"required,mongodb"`
	StartDate     string `json:"startDate" validate:"required"`
	EndDate       string `json:"endDate" validate:"required"`
	TotalPrice    int64  `json:"totalPrice" validate:"required,gt=0"`
	UserID        string `json:"userId" validate:"required,max=128"`
	CustomerEmail string `json:"customerEmail,omitempty" validate:"omitempty,email"`
}

type CampaignCheckoutRequest struct {
	CampaignID    string `json:"campaignId" validate:"required,mongodb"`
	UserID        string `json:"userId" validate:"required,max=128"`
	CustomerEmail string `json:"customerEmail,omitempty" validate:"omitempty,email"`
}

// DateRange is the parsed, inclusive range of a single checkout.
type DateRange struct {
	Start time.Time
	End   time.Time
}

type CheckoutValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCheckoutValidator(log *logger.Logger) *CheckoutValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	log.Info("Checkout validator initialized successfully")

	return &CheckoutValidator{
		validate: v,
		logger:   log,
	}
}

func (v *CheckoutValidator) ValidateSingle(req *SingleCheckoutRequest) (DateRange, error) {
	if err := v.structErrors(req); err != nil {
		return DateRange{}, err
	}

	var errs ValidationErrors
	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		errs = append(errs, ValidationError{Field: "startDate", Message: err.Error()})
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		errs = append(errs, ValidationError{Field: "endDate", Message: err.Error()})
	}
	if len(errs) > 0 {
		return DateRange{}, errs
	}

	if end.Before(start) {
		return DateRange{}, ValidationErrors{
			ValidationError{Field: "endDate", Message: "endDate must not be before startDate"},
		}
	}
	return DateRange{Start: start, End: end}, nil
}

func (v *CheckoutValidator) ValidateCampaign(req *CampaignCheckoutRequest) error {
	return v.structErrors(req)
}

func (v *CheckoutValidator) structErrors(req any) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *CheckoutValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ObjectID", err.Field())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
