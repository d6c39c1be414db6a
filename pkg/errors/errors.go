package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeMissingFields Code = "MISSING_FIELDS"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeUnexpected    Code = "UNEXPECTED_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// checkout
	CodeEmptyCart        Code = "EMPTY_CART"
	CodeSiteInfo         Code = "SITE_INFO_ERROR"
	CodeRates            Code = "RATES_ERROR"
	CodeRatesCalculation Code = "RATES_CALCULATION_ERROR"
	CodeNoValidItems     Code = "NO_VALID_ITEMS"
	CodeOrderSave        Code = "ORDER_SAVE_ERROR"
	CodePaymentSave      Code = "PAYMENT_SAVE_ERROR"

	// wallet ledger
	CodeInsufficientFunds    Code = "INSUFFICIENT_FUNDS"
	CodeIncompatibleCurrency Code = "INCOMPATIBLE_CURRENCY"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidInput: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeMissingFields: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "required fields are missing",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimited: {
		HTTPStatus:    http.StatusTooManyRequests,
		Retryable:     true,
		PublicMessage: "too many requests",
	},
	CodeUnexpected: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "something went wrong, please try again",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "cart is empty",
	},
	CodeSiteInfo: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		PublicMessage: "unable to resolve store information",
	},
	CodeRates: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "exchange rates unavailable",
	},
	CodeRatesCalculation: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		PublicMessage: "unable to convert between currencies",
	},
	CodeNoValidItems: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "no valid items in cart",
		DetailsAllowed: true,
	},
	CodeOrderSave: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "unable to save orders",
	},
	CodePaymentSave: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "unable to save payment",
	},
	CodeInsufficientFunds: {
		HTTPStatus:    http.StatusPaymentRequired,
		PublicMessage: "Insufficient funds",
	},
	CodeIncompatibleCurrency: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		PublicMessage: "Incompatible currency",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeUnexpected]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnexpected
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code so typed sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code && (t.message == "" || e.message == t.message)
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeUnexpected for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeUnexpected
}

// PublicMessage returns the caller-safe message for err: the typed message for
// business errors and the generic public message for everything else.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeUnexpected).PublicMessage
	}
	meta := MetadataFor(typed.Code())
	if meta.HTTPStatus >= http.StatusInternalServerError || typed.Message() == "" {
		return meta.PublicMessage
	}
	return typed.Message()
}
