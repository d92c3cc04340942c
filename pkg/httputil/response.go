package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/logger"
)

// Payload holds the top-level keys merged into a success envelope,
// e.g. Payload{"cart": cart} renders as {"success":true,"cart":{...}}.
type Payload map[string]any

// ErrorResponse is the failure envelope: {"success":false,"error":"...","code":"..."}.
type ErrorResponse struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes {"success":true} merged with payload.
func WriteSuccess(w http.ResponseWriter, status int, payload Payload) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	WriteJSON(w, status, body)
}

// WriteMessage writes a success envelope carrying only a human-readable message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteSuccess(w, status, Payload{"message": message})
}

// WriteError writes the failure envelope for err. AppErrors keep their code and
// status; anything else becomes a generic UPSTREAM_FAILURE. 5xx errors are logged
// with the request-scoped logger when one is mounted, otherwise with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Upstream(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", appErr.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, ErrorResponse{
		Success:   false,
		Error:     appErr.Message,
		Code:      appErr.Code,
		Fields:    appErr.Fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	})
}

// Pagination is the page metadata returned next to list payloads.
type Pagination struct {
	TotalCount int  `json:"totalCount"`
	Page       int  `json:"page"`
	PerPage    int  `json:"perPage"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
}

// NewPagination computes TotalPages and HasNext from the raw counts.
func NewPagination(totalCount, page, perPage int) Pagination {
	totalPages := 0
	if perPage > 0 {
		totalPages = totalCount / perPage
		if totalCount%perPage > 0 {
			totalPages++
		}
	}
	return Pagination{
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// WriteList writes {"success":true,"<key>":[...],"pagination":{...}}.
// A nil slice is rendered as [] rather than null.
func WriteList[T any](w http.ResponseWriter, key string, items []T, totalCount, page, perPage int) {
	if items == nil {
		items = []T{}
	}
	WriteSuccess(w, http.StatusOK, Payload{
		key:          items,
		"pagination": NewPagination(totalCount, page, perPage),
	})
}
