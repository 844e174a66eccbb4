package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidPhone     ErrorCode = "INVALID_PHONE"
	ErrCodeInvalidCurrency  ErrorCode = "INVALID_CURRENCY"

	ErrCodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeBookingNotFound     ErrorCode = "BOOKING_NOT_FOUND"
	ErrCodePaymentTerminal     ErrorCode = "PAYMENT_ALREADY_FINAL"
	ErrCodeNoGatewayAvailable  ErrorCode = "NO_GATEWAY_AVAILABLE"
	ErrCodeGatewayFailed       ErrorCode = "GATEWAY_FAILED"
	ErrCodeInvalidSignature    ErrorCode = "INVALID_SIGNATURE"
	ErrCodePaymentNotRetryable ErrorCode = "PAYMENT_NOT_RETRYABLE"

	ErrCodeRefundNotFound      ErrorCode = "REFUND_NOT_FOUND"
	ErrCodeRefundExists        ErrorCode = "REFUND_ALREADY_OPEN"
	ErrCodeRefundExceedsAmount ErrorCode = "REFUND_EXCEEDS_AMOUNT"
	ErrCodeRefundInvalidStatus ErrorCode = "REFUND_INVALID_STATUS"
	ErrCodePaymentNotConfirmed ErrorCode = "PAYMENT_NOT_CONFIRMED"

	ErrCodeWithdrawalNotFound  ErrorCode = "WITHDRAWAL_NOT_FOUND"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeWithdrawalStatus    ErrorCode = "WITHDRAWAL_INVALID_STATUS"

	ErrCodeInvoiceNotFound ErrorCode = "INVOICE_NOT_FOUND"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			if len(messages) > 0 {
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewExternalError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrPaymentNotFound     = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrBookingNotFound     = NewNotFoundError("Booking not found", ErrCodeBookingNotFound)
	ErrNoGatewayAvailable  = NewExternalError("No payment gateway available", ErrCodeNoGatewayAvailable)
	ErrPaymentNotRetryable = NewConflictError("Payment cannot be retried in its current status", ErrCodePaymentNotRetryable)
	ErrInvalidSignature    = NewUnauthorizedError("Webhook signature verification failed", ErrCodeInvalidSignature)

	ErrRefundNotFound      = NewNotFoundError("Refund not found", ErrCodeRefundNotFound)
	ErrRefundExists        = NewConflictError("An open refund already exists for this payment", ErrCodeRefundExists)
	ErrRefundExceedsAmount = NewValidationError("Refund amount exceeds the original payment amount", ErrCodeRefundExceedsAmount)
	ErrRefundInvalidStatus = NewConflictError("Refund cannot change status from its current state", ErrCodeRefundInvalidStatus)
	ErrPaymentNotConfirmed = NewConflictError("Only confirmed payments can be refunded", ErrCodePaymentNotConfirmed)

	ErrWithdrawalNotFound    = NewNotFoundError("Withdrawal not found", ErrCodeWithdrawalNotFound)
	ErrInsufficientBalance   = NewValidationError("Withdrawal amount exceeds available balance", ErrCodeInsufficientBalance)
	ErrWithdrawalInvalidMove = NewConflictError("Withdrawal cannot change status from its current state", ErrCodeWithdrawalStatus)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
