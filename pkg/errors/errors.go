package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Every AppError wraps exactly one of these so callers can
// branch with errors.Is regardless of the message.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrAmountMismatch  = errors.New("amount mismatch")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrUpstream        = errors.New("upstream failure")
	ErrUnavailable     = errors.New("service unavailable")
	ErrRateLimited     = errors.New("rate limited")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Unauthenticated creates a 401 error for a missing or invalid buyer identity.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthenticated,
	}
}

// Unauthorized creates a 403 error: the caller is known but does not own the resource.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrUnauthorized,
	}
}

// EmptyCart creates a 400 error raised when an order is assembled from an empty cart.
func EmptyCart() *AppError {
	return &AppError{
		Code:    "EMPTY_CART",
		Message: "cannot create an order from an empty cart",
		Status:  http.StatusBadRequest,
		Err:     ErrEmptyCart,
	}
}

// AmountMismatch creates a 400 error for a settlement amount that differs from the order total.
func AmountMismatch(expected, got string) *AppError {
	return &AppError{
		Code:    "AMOUNT_MISMATCH",
		Message: fmt.Sprintf("payment amount %s does not match order total %s", got, expected),
		Status:  http.StatusBadRequest,
		Err:     ErrAmountMismatch,
	}
}

// Validation creates a 400 error. fields may be nil.
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Fields:  fields,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// PaymentDeclined creates a 422 error for a charge the provider refused.
func PaymentDeclined(reason string) *AppError {
	return &AppError{
		Code:    "PAYMENT_DECLINED",
		Message: reason,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrPaymentDeclined,
	}
}

// Upstream creates a 500 error for a data-store or network failure.
// The message is generic so it can be shown to the buyer as retry-able.
func Upstream(err error) *AppError {
	return &AppError{
		Code:    "UPSTREAM_FAILURE",
		Message: "a temporary error occurred, please try again",
		Status:  http.StatusInternalServerError,
		Err:     ErrUpstream,
		cause:   err,
	}
}

// Unavailable creates a 503 error, used when a dependency is short-circuited.
func Unavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "UPSTREAM_FAILURE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrUnavailable,
		cause:   err,
	}
}

// RateLimited creates a 429 error.
func RateLimited() *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: "too many requests",
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsApp reports whether err already carries an AppError.
func IsApp(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsUpstream passes AppErrors through untouched and turns anything else into UPSTREAM_FAILURE.
func AsUpstream(err error) error {
	if err == nil || IsApp(err) {
		return err
	}
	return Upstream(err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentDeclined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
