package ec

import (
	"errors"
	"fmt"
)

// KeyError represents a failure to decode, reconstruct or generate EC key material
type KeyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *KeyError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the backend error that caused this failure, if any
func (e *KeyError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a KeyError with the same code, so the
// sentinel values below work with errors.Is
func (e *KeyError) Is(target error) bool {
	t, ok := target.(*KeyError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Key error codes
const (
	ErrCodeUnknownCurve            = "UNKNOWN_CURVE"
	ErrCodeMalformedEncoding       = "MALFORMED_ENCODING"
	ErrCodeInvalidCoordinateLength = "INVALID_COORDINATE_LENGTH"
	ErrCodePointNotOnCurve         = "POINT_NOT_ON_CURVE"
	ErrCodeInvalidKeyMaterial      = "INVALID_KEY_MATERIAL"
	ErrCodeInvalidPem              = "INVALID_PEM"
	ErrCodeUnsupportedKeyType      = "UNSUPPORTED_KEY_TYPE"
	ErrCodeCryptoBackendFailure    = "CRYPTO_BACKEND_FAILURE"
)

// Sentinels for errors.Is
var (
	ErrUnknownCurve            = &KeyError{Code: ErrCodeUnknownCurve, Message: "unknown curve"}
	ErrMalformedEncoding       = &KeyError{Code: ErrCodeMalformedEncoding, Message: "malformed base64url encoding"}
	ErrInvalidCoordinateLength = &KeyError{Code: ErrCodeInvalidCoordinateLength, Message: "invalid coordinate length"}
	ErrPointNotOnCurve         = &KeyError{Code: ErrCodePointNotOnCurve, Message: "point is not on curve"}
	ErrInvalidKeyMaterial      = &KeyError{Code: ErrCodeInvalidKeyMaterial, Message: "invalid key material"}
	ErrInvalidPem              = &KeyError{Code: ErrCodeInvalidPem, Message: "invalid PEM"}
	ErrUnsupportedKeyType      = &KeyError{Code: ErrCodeUnsupportedKeyType, Message: "unsupported key type"}
	ErrCryptoBackendFailure    = &KeyError{Code: ErrCodeCryptoBackendFailure, Message: "crypto backend failure"}
)

// NewKeyError creates a new key error
func NewKeyError(code, message string) *KeyError {
	return &KeyError{
		Code:    code,
		Message: message,
	}
}

// NewKeyErrorWithDetails creates a new key error with details
func NewKeyErrorWithDetails(code, message, details string) *KeyError {
	return &KeyError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func wrapKeyError(code, message string, cause error) *KeyError {
	e := &KeyError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// IsKeyError checks if an error is, or wraps, a KeyError
func IsKeyError(err error) bool {
	var keyErr *KeyError
	return errors.As(err, &keyErr)
}

// GetKeyError returns the KeyError if the error is, or wraps, a KeyError
func GetKeyError(err error) *KeyError {
	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return keyErr
	}
	return nil
}
