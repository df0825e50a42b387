package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"jobflow/internal/domain"
	"jobflow/internal/infra/logging"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/rs/zerolog"
)

const (
	msgInternal     = "Internal server error."
	msgBadBody      = "Invalid request body."
	msgUnauthorized = "Unauthorized."
	msgForbidden    = "Forbidden."
	msgRateLimited  = "Too many requests."
	msgNotFound     = "Not found."
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, messageResponse{Message: msg})
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ue):
		if ue.Status >= 400 && ue.Status <= 599 {
			return ue.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {message}. Unclassified errors are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status := statusFor(err)
	msg, ok := domain.Message(err)
	if !ok {
		switch status {
		case http.StatusNotFound:
			msg = msgNotFound
		case http.StatusInternalServerError:
			msg = msgInternal
		default:
			msg = http.StatusText(status)
		}
	}
	if status >= 500 {
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeMessage(w, r, status, msg)
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return msgBadBody
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", e.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s exceeds %s", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", e.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
