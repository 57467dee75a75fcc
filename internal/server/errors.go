package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Error codes used for stable HTTP mapping.
const (
	CodeValidation     = "VALIDATION"
	CodeDeviceNotFound = "DEVICE_NOT_FOUND"
	CodeUpgradeFailed  = "UPGRADE_FAILED"
	CodeShuttingDown   = "SHUTTING_DOWN"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

func statusFor(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeDeviceNotFound:
		return http.StatusNotFound
	case CodeShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapErr converts an error into a huma status error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return huma.NewError(statusFor(coded.Code), coded.Message)
	}
	return huma.Error500InternalServerError(err.Error())
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError answers a plain (non-huma) request with a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: "INTERNAL", Message: err.Error()}
	status := http.StatusInternalServerError
	var coded *CodedError
	if errors.As(err, &coded) {
		body = errorBody{Code: coded.Code, Message: coded.Message}
		status = statusFor(coded.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("error response write failed", "error", err)
	}
}
