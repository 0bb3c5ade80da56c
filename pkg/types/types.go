// Package types defines the JWT payloads shared by the signer, verifier and token source
package types

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims represents the payload of a self-signed access token
type AccessClaims struct {
	Issuer    string           `json:"iss"`             // Issuer URL (identifies the calling service)
	Subject   string           `json:"sub,omitempty"`   // Subject the token acts for
	Audience  string           `json:"aud"`             // Audience (the receiving service)
	Kid       string           `json:"kid"`             // Key identifier of the signing key
	Scope     string           `json:"scope,omitempty"` // Space separated OAuth2 scopes
	ID        string           `json:"jti,omitempty"`   // Token identifier
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`   // Expiration timestamp
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`   // Issued at timestamp
	NotBefore *jwt.NumericDate `json:"nbf,omitempty"`   // Not valid before timestamp
}

// GetExpirationTime implements jwt.Claims interface
func (c *AccessClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.ExpiresAt, nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *AccessClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.IssuedAt, nil
}

// GetNotBefore implements jwt.Claims interface
func (c *AccessClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return c.NotBefore, nil
}

// GetIssuer implements jwt.Claims interface
func (c *AccessClaims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

// GetSubject implements jwt.Claims interface
func (c *AccessClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

// GetAudience implements jwt.Claims interface
func (c *AccessClaims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Scopes splits the scope claim
func (c *AccessClaims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// HasScopes reports whether every required scope was granted
func (c *AccessClaims) HasScopes(required ...string) bool {
	granted := make(map[string]struct{})
	for _, s := range c.Scopes() {
		granted[s] = struct{}{}
	}
	for _, r := range required {
		if _, ok := granted[r]; !ok {
			return false
		}
	}
	return true
}
