// Package handler holds the small set of HTTP response helpers shared by
// every endpoint. The teacher's writeJSON/writeError pair is kept
// (header-then-status-then-body ordering, a single error-mapping choke
// point) but the wire shape changes: spec.md §7 specifies a flat
// {"detail": ...} error body, not the teacher's {"error","message"} pair.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/takagi/internal/apperror"
)

// detailResponse is the wire-compatible error shape spec.md §7 and
// original_source/takagi/responses.py's HTTPClientErrorResponse specify.
type detailResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON sends a JSON response with the given status code. Headers
// and the status line must be set before the body is written — once
// json.Encoder writes, headers are locked in.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteDetail writes {"detail": message} at status — the standard shape
// for every 4xx this service returns.
func WriteDetail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, detailResponse{Detail: message})
}

// WriteError maps a domain error to the HTTP status and detail body
// spec.md §7 specifies and sends it.
//
//   - apperror.ErrInvalidRequest / ErrMismatchingState -> 400
//   - apperror.ErrUnauthorized -> 401, empty body (never a detail message)
//   - apperror.ErrNotFound -> 404
//   - *apperror.UpstreamError -> GitHub's own status and raw JSON body,
//     re-raised verbatim
//   - anything else -> 500, generic detail
func WriteError(w http.ResponseWriter, err error) {
	var upstream *apperror.UpstreamError
	if errors.As(err, &upstream) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstream.Status)
		w.Write(upstream.Body)
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrUnauthorized):
			w.WriteHeader(http.StatusUnauthorized)
			return
		case errors.Is(err, apperror.ErrMismatchingState):
			WriteDetail(w, http.StatusBadRequest, appErr.Message)
			return
		case errors.Is(err, apperror.ErrInvalidRequest):
			WriteDetail(w, http.StatusBadRequest, appErr.Message)
			return
		case errors.Is(err, apperror.ErrNotFound):
			WriteDetail(w, http.StatusNotFound, appErr.Message)
			return
		}
	}

	slog.Error("unhandled internal error", slog.String("error", err.Error()))
	WriteDetail(w, http.StatusInternalServerError, "internal server error")
}
