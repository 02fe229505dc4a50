// Package httputil writes API responses in the authority's wire format.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/sentinel"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps an error to its HTTP status and writes the standard error
// body. Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	status, code, description := classify(err)
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	WriteJSON(w, status, body)
}

func classify(err error) (status int, code, description string) {
	var de *dErrors.Error
	if errors.As(err, &de) {
		switch de.Code {
		case dErrors.CodeInvalidInput:
			return http.StatusBadRequest, string(de.Code), de.Message
		case dErrors.CodeInvalidConsent, dErrors.CodeMissingConsent:
			return http.StatusUnprocessableEntity, string(de.Code), de.Message
		case dErrors.CodeNotPermitted:
			return http.StatusForbidden, string(de.Code), de.Message
		case dErrors.CodeTooLarge:
			return http.StatusRequestEntityTooLarge, string(de.Code), de.Message
		}
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, "not_found", ""
	case errors.Is(err, sentinel.ErrGone):
		return http.StatusGone, "gone", ""
	case errors.Is(err, sentinel.ErrExpired):
		return http.StatusGone, "expired", ""
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrInvalidState):
		return http.StatusConflict, "conflict", ""
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return http.StatusConflict, "already_used", ""
	case errors.Is(err, sentinel.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", ""
	}
	return http.StatusInternalServerError, "internal_error", ""
}
