package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentGateway         = errors.New("payment gateway error")
)

// ValidationError names the offending field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// GatewayError carries the provider response of a failed payment call.
type GatewayError struct {
	Op         string
	StatusCode int
	Detail     any
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("paymongo %s: status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("paymongo %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("paymongo %s failed", e.Op)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrPaymentGateway
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
