package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		wantMsg  string
	}{
		{"not found envelope", 404, `{"success":false,"error":"item x not found","code":"NOT_FOUND"}`, apperrors.ErrNotFound, "item x not found"},
		{"bad request", 400, `{"success":false,"error":"bad id","code":"VALIDATION_ERROR"}`, apperrors.ErrValidation, "catalog: bad id"},
		{"unauthenticated", 401, `{"success":false,"error":"no token","code":"UNAUTHENTICATED"}`, apperrors.ErrUnauthenticated, "catalog: no token"},
		{"forbidden", 403, `plain text`, apperrors.ErrUnauthorized, "catalog: plain text"},
		{"conflict", 409, `{"success":false,"error":"dup","code":"CONFLICT"}`, apperrors.ErrConflict, "catalog: dup"},
		{"throttled", 429, ``, apperrors.ErrUnavailable, "catalog is unavailable"},
		{"server error", 500, `{"success":false,"error":"db down","code":"UPSTREAM_FAILURE"}`, apperrors.ErrUpstream, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "catalog")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var appErr *apperrors.AppError
			if assert.ErrorAs(t, err, &appErr) && tt.wantMsg != "" {
				assert.Contains(t, appErr.Message, tt.wantMsg)
			}
		})
	}
}
