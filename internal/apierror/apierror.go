// Package apierror maps the error taxonomy (section 7: ValidationError,
// NotFound, RateLimited, RepositoryError) to HTTP status codes and a flat
// JSON envelope, mirroring the Write/log-at-severity mechanism of the
// teacher's internal/api/problem package without its RFC7807 content type —
// errors use the flat {error:{...}} envelope, not Problem Details. Success
// bodies are not wrapped in a data field: list endpoints return an items
// array and the detail and vote endpoints return the object itself.
package apierror

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindRepository  Kind = "repository_error"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal_error"
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindRepository:
		return http.StatusInternalServerError
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type body struct {
	Type   Kind   `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
}

type envelope struct {
	Error body `json:"error"`
}

// Write renders kind/title/err as the flat error envelope, logging 5xx at
// error level and 4xx at warn level via the request-scoped logger. In
// production err.Error() is redacted from the response body.
func Write(w http.ResponseWriter, r *http.Request, kind Kind, title string, err error, environment string) {
	status := kind.Status()

	detail := ""
	if err != nil {
		if environment == "development" || environment == "test" {
			detail = err.Error()
		} else {
			detail = http.StatusText(status)
		}
	}

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Int("status", status).Str("type", string(kind)).Str("path", r.URL.Path).Str("method", r.Method).Msg(title)

	resp := envelope{Error: body{Type: kind, Title: title, Detail: detail, Status: status}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
