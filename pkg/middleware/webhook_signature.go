package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	apperrors "adspace/pkg/errors"
	"adspace/pkg/logger"
)

// WebhookSignature guards routes under pathPrefix: requests without the
// signature header are rejected before any handler runs. The body is buffered
// and restored so the handler can verify the signature over the raw bytes.
func WebhookSignature(pathPrefix, header string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, pathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get(header) == "" {
				log.Warn("Webhook request without signature",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
				)
				reject(w, log, apperrors.Signature(nil))
				return
			}

			if err := readAndRestoreBody(r); err != nil {
				log.Warn("Failed to read webhook body",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				reject(w, log, apperrors.InvalidInput("unable to read request body"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}
