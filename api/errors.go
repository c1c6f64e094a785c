package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/logger"
)

// statusFor maps the domain error taxonomy to HTTP status codes.
//
//	ValidationError                     400
//	NotFound, DayNotFound               404
//	SlabOverlap, DuplicateEntry,
//	PeriodOverlap, DuplicateRecord      409
//	NoMatchingSlab, MissingSalaryProfile 422
//	DayLocked, PeriodLocked             423
//	anything else                       500
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, generic.ErrValidation), errors.As(err, &verrs):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, generic.ErrNoMatchingSlab), errors.Is(err, generic.ErrMissingSalaryProfile):
		return http.StatusUnprocessableEntity
	case generic.IsLocked(err):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

var messages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusNotFound:            "Not found",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Cannot process request",
	http.StatusLocked:              "Locked",
	http.StatusInternalServerError: "Internal error",
}

// fail writes a domain error with its mapped status. Server errors are
// logged with the request logger and their details are not sent.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, status, messages[status], nil)
		return
	}
	writeError(w, status, messages[status], err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
