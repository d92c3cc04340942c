package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

const maxBodyBytes = 1 << 20

// DownstreamErrorResponse is the failure envelope written by pkg/httputil.
type DownstreamErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// ParseResponseError consumes and closes a non-2xx response and returns the
// matching AppError. Call only when resp.StatusCode is not 2xx.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Upstream(fmt.Errorf("%s returned status %d (read body: %w)", serviceName, resp.StatusCode, err))
	}

	var downstream DownstreamErrorResponse
	message := string(body)
	code := ""
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != "" {
		message = downstream.Error
		code = downstream.Code
	}
	return mapDownstreamError(resp.StatusCode, code, message, serviceName)
}

// mapDownstreamError keeps client-side failures meaningful to our callers
// and folds every server-side failure into UPSTREAM_FAILURE.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName+" resource", message)
	case status == http.StatusBadRequest:
		return apperrors.Validation(qualified, nil)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthenticated(qualified)
	case status == http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return apperrors.Unavailable(serviceName+" is unavailable", fmt.Errorf("status %d: %s", status, message))
	default:
		return apperrors.Upstream(fmt.Errorf("%s returned status %d (%s): %s", serviceName, status, code, message))
	}
}
