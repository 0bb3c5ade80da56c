// Package josekeys defines types for the EC key access-token client
package josekeys

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AccessToken is a bearer token and its validity window
type AccessToken struct {
	Value     string    `json:"access_token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// String keeps the token value out of logs
func (t AccessToken) String() string {
	return fmt.Sprintf("AccessToken{IssuedAt: %s, ExpiresAt: %s, Value: <redacted>}",
		t.IssuedAt.Format(time.RFC3339), t.ExpiresAt.Format(time.RFC3339))
}

// Lifetime returns the total validity window of the token
func (t AccessToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Expired reports whether the token is no longer valid at now
func (t AccessToken) Expired(now time.Time) bool {
	return t.Value == "" || !now.Before(t.ExpiresAt)
}

// Stale reports whether less than fraction of the lifetime remains at now
func (t AccessToken) Stale(now time.Time, fraction float64) bool {
	if t.Expired(now) {
		return true
	}
	remaining := t.ExpiresAt.Sub(now)
	return remaining < time.Duration(float64(t.Lifetime())*fraction)
}

// TokenSource supplies the current access token
type TokenSource interface {
	Token(ctx context.Context) (AccessToken, error)
}

// ClientError represents an error from the access-token client
type ClientError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeConfigurationError = "CONFIGURATION_ERROR"
	ErrCodeKeyError           = "KEY_ERROR"
	ErrCodeTokenError         = "TOKEN_ERROR"
	ErrCodeHTTPError          = "HTTP_ERROR"
	ErrCodeNetworkError       = "NETWORK_ERROR"
)

// NewClientError creates a new client error
func NewClientError(code, message string) *ClientError {
	return &ClientError{
		Code:    code,
		Message: message,
	}
}

// NewClientErrorWithDetails creates a new client error with details
func NewClientErrorWithDetails(code, message, details string) *ClientError {
	return &ClientError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsClientError checks if an error is, or wraps, a ClientError
func IsClientError(err error) bool {
	return GetClientError(err) != nil
}

// GetClientError returns the ClientError if the error is, or wraps, a ClientError
func GetClientError(err error) *ClientError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}
	return nil
}
