// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInvalidInput      = errors.New("invalid input")
	ErrLocked            = errors.New("locked")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrTokenInvalid      = errors.New("token invalid")
)

// AppError is the transport shape of a failure.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// LockedError reports a resource the caller's tier does not unlock.
type LockedError struct {
	Resource     string
	ResourceID   string
	WeekNumber   int
	Reason       string
	RequiredPlan string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s locked: %s", e.Resource, e.Reason)
}

func (e *LockedError) Unwrap() error {
	return ErrLocked
}

// InsufficientFundsError is returned by spends that exceed the balance.
// Nothing has been written when it is returned.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds: required %d, available %d",
		e.Required,
		e.Available,
	)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Available
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status}
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "BAD_REQUEST", message)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		http.StatusNotFound,
		"NOT_FOUND",
		fmt.Sprintf("%s not found", resource),
	)
}

func ConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, "CONFLICT", message)
}

func TokenExpiredError() *AppError {
	return NewAppError(http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired")
}

func TokenRevokedError() *AppError {
	return NewAppError(http.StatusUnauthorized, "TOKEN_REVOKED", "token has been revoked")
}

func TokenInvalidError() *AppError {
	return NewAppError(http.StatusUnauthorized, "TOKEN_INVALID", "token is invalid")
}

func lockedAppError(e *LockedError) *AppError {
	return &AppError{
		Code:       "LOCKED",
		Message:    e.Reason,
		StatusCode: http.StatusForbidden,
		Details: map[string]any{
			"resource":      e.Resource,
			"resource_id":   e.ResourceID,
			"week_number":   e.WeekNumber,
			"required_plan": e.RequiredPlan,
		},
		Err: e,
	}
}

func insufficientFundsAppError(e *InsufficientFundsError) *AppError {
	return &AppError{
		Code:       "INSUFFICIENT_FUNDS",
		Message:    "not enough XP",
		StatusCode: http.StatusPaymentRequired,
		Details: map[string]any{
			"required":  e.Required,
			"available": e.Available,
			"shortfall": e.Shortfall(),
		},
		Err: e,
	}
}

// ToAppError maps any error of the taxonomy onto its transport shape.
// Unknown errors become an opaque 500.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var locked *LockedError
	if errors.As(err, &locked) {
		return lockedAppError(locked)
	}

	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		return insufficientFundsAppError(funds)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{
			Code:       "NOT_FOUND",
			Message:    err.Error(),
			StatusCode: http.StatusNotFound,
			Err:        err,
		}
	case errors.Is(err, ErrInvalidInput):
		return &AppError{
			Code:       "BAD_REQUEST",
			Message:    err.Error(),
			StatusCode: http.StatusBadRequest,
			Err:        err,
		}
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateKey):
		return &AppError{
			Code:       "CONFLICT",
			Message:    err.Error(),
			StatusCode: http.StatusConflict,
			Err:        err,
		}
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("authentication required")
	case errors.Is(err, ErrForbidden):
		return ForbiddenError("insufficient permissions")
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError()
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	}

	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
