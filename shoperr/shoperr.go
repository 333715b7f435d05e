// Package shoperr defines the failure taxonomy shared by the stores, the
// services and the HTTP layer.
package shoperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	ConnectionFailure        Code = "CONNECTION_FAILURE"
	ConstraintViolation      Code = "CONSTRAINT_VIOLATION"
	AlreadyConnected         Code = "ALREADY_CONNECTED"
	NotLoggedIn              Code = "NOT_LOGGED_IN"
	InsufficientFunds        Code = "INSUFFICIENT_FUNDS"
	InsufficientStock        Code = "INSUFFICIENT_STOCK"
	InsufficientCartQuantity Code = "INSUFFICIENT_CART_QUANTITY"
	InvalidQuantity          Code = "INVALID_QUANTITY"
	EmptyCart                Code = "EMPTY_CART"
	NotInCart                Code = "NOT_IN_CART"
	NotFound                 Code = "NOT_FOUND"
	OrderNotFound            Code = "ORDER_NOT_FOUND"
	IllegalTransition        Code = "ILLEGAL_TRANSITION"
	NotAuthorized            Code = "NOT_AUTHORIZED"
	InvalidArgument          Code = "INVALID_ARGUMENT"
	NoCarrierAvailable       Code = "NO_CARRIER_AVAILABLE"
	Timeout                  Code = "TIMEOUT"
	DatabaseError            Code = "DATABASE_ERROR"
	CacheError               Code = "CACHE_ERROR"
)

// Error is a classified failure. Two errors match under errors.Is when their
// codes are equal, so the package-level sentinels below can be used as targets.
type Error struct {
	Code    Code
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Detail)
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds an Error.
func New(code Code, message, detail string) *Error {
	return &Error{Code: code, Message: message, Detail: detail}
}

// Newf builds an Error with a formatted detail.
func Newf(code Code, message, format string, args ...any) *Error {
	return &Error{Code: code, Message: message, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrConnectionFailure        = &Error{Code: ConnectionFailure}
	ErrConstraintViolation      = &Error{Code: ConstraintViolation}
	ErrAlreadyConnected         = &Error{Code: AlreadyConnected}
	ErrNotLoggedIn              = &Error{Code: NotLoggedIn}
	ErrInsufficientFunds        = &Error{Code: InsufficientFunds}
	ErrInsufficientStock        = &Error{Code: InsufficientStock}
	ErrInsufficientCartQuantity = &Error{Code: InsufficientCartQuantity}
	ErrInvalidQuantity          = &Error{Code: InvalidQuantity}
	ErrEmptyCart                = &Error{Code: EmptyCart}
	ErrNotInCart                = &Error{Code: NotInCart}
	ErrNotFound                 = &Error{Code: NotFound}
	ErrOrderNotFound            = &Error{Code: OrderNotFound}
	ErrIllegalTransition        = &Error{Code: IllegalTransition}
	ErrNotAuthorized            = &Error{Code: NotAuthorized}
	ErrInvalidArgument          = &Error{Code: InvalidArgument}
	ErrNoCarrierAvailable       = &Error{Code: NoCarrierAvailable}
	ErrTimeout                  = &Error{Code: Timeout}
	ErrDatabase                 = &Error{Code: DatabaseError}
	ErrCache                    = &Error{Code: CacheError}
)

// CodeOf extracts the code of err. Context expiry maps to Timeout and
// anything unclassified to DatabaseError.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	return DatabaseError
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// Retryable reports whether the caller may reasonably retry the operation.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case Timeout, ConnectionFailure:
		return true
	}
	return false
}

// HTTPStatus maps a code to the status the API answers with.
func HTTPStatus(code Code) int {
	switch code {
	case NotFound, OrderNotFound, NotInCart:
		return http.StatusNotFound
	case AlreadyConnected, ConstraintViolation, IllegalTransition:
		return http.StatusConflict
	case NotLoggedIn, NotAuthorized:
		return http.StatusForbidden
	case InsufficientFunds:
		return http.StatusPaymentRequired
	case InsufficientStock, InsufficientCartQuantity, EmptyCart, NoCarrierAvailable:
		return http.StatusUnprocessableEntity
	case InvalidQuantity, InvalidArgument:
		return http.StatusBadRequest
	case Timeout, ConnectionFailure:
		return http.StatusServiceUnavailable
	case CacheError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
