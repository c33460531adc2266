package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConfigError reports a missing or invalid setting. Raised before any network call.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("config: %s is not set", e.Field)
}

type InvalidPhoneNumberError struct {
	Input      string
	Normalized string
}

func (e *InvalidPhoneNumberError) Error() string {
	return fmt.Sprintf("invalid phone number %q: expected a 12 digit number starting with 254", e.Input)
}

type InvalidAmountError struct {
	Amount float64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %v: must be at least 1", e.Amount)
}

type ErrorKind string

const (
	ErrorKindNetwork  ErrorKind = "network"
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindUpstream ErrorKind = "upstream"
)

// UpstreamError is a failure reported by, or while talking to, the payment provider.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// TimeoutError is a soft outcome: the provider never gave a terminal answer in time.
type TimeoutError struct {
	CheckoutRequestID string
	Attempts          int
	Elapsed           time.Duration
}

func (e *TimeoutError) Error() string {
	return "We did not receive a payment confirmation in time. Please check your phone for the M-Pesa message or contact support."
}

func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

func IsInvalidPhoneNumber(err error) bool {
	var e *InvalidPhoneNumberError
	return errors.As(err, &e)
}

func IsUpstream(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// HTTPStatus maps an error from any layer onto the status code handlers respond with.
func HTTPStatus(err error) int {
	var (
		cfgErr   *ConfigError
		phoneErr *InvalidPhoneNumberError
		amtErr   *InvalidAmountError
		upErr    *UpstreamError
		nfErr    *NotFoundError
		cfErr    *ConflictError
		fbErr    *ForbiddenError
		toErr    *TimeoutError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &phoneErr), errors.As(err, &amtErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &cfErr):
		return http.StatusConflict
	case errors.As(err, &fbErr):
		return http.StatusForbidden
	case errors.As(err, &toErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &upErr):
		if upErr.Kind == ErrorKindNetwork {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
