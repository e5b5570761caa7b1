package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "adspace/pkg/errors"
	"adspace/pkg/model"
)

// DecodeJSON rejects unknown fields and trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	if dec.More() {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}

// QueryDate parses a required date query parameter.
func QueryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("missing query parameter: " + name)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(name + ": " + err.Error())
	}
	return d, nil
}
