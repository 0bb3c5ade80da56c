// Package jwt signs and validates ECDSA JWTs (ES256/ES384/ES512) with ec key parameters
package jwt

import (
	"crypto/ecdsa"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	internaljwt "github.com/OpsMx/jose-keys/internal/jwt"
	"github.com/OpsMx/jose-keys/pkg/ec"
	"github.com/OpsMx/jose-keys/pkg/types"
)

const (
	// DefaultTTL is the lifetime given to tokens without an expiry
	DefaultTTL = 2 * time.Minute

	// DefaultLeeway is the clock skew tolerated when validating time claims
	DefaultLeeway = time.Minute
)

// Signer interface for testing and abstraction
type Signer interface {
	SignJWT(claims *types.AccessClaims) (string, error)
	Kid() string
	PublicKey() ec.PublicKeyParameters
	PublicKeyPEM() (string, error)
}

// ECSigner signs JWTs with an EC private key.
// The parsed key is kept private to this struct and never exposed.
type ECSigner struct {
	key    *ecdsa.PrivateKey
	method *jwt.SigningMethodECDSA
	public ec.PublicKeyParameters
	kid    string
	ttl    time.Duration
	now    func() time.Time
}

var _ Signer = (*ECSigner)(nil)

// SignerOption customizes an ECSigner
type SignerOption func(*ECSigner)

// WithTTL sets the lifetime of tokens signed without an explicit expiry
func WithTTL(ttl time.Duration) SignerOption {
	return func(s *ECSigner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSignerClock replaces time.Now, for tests
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *ECSigner) {
		s.now = now
	}
}

// NewSigner creates a signer from EC key parameters and the key ID published with the key
func NewSigner(key *ec.PrivateKeyParameters, kid string, opts ...SignerOption) (*ECSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if kid == "" {
		return nil, fmt.Errorf("kid is required")
	}

	method, err := internaljwt.SigningMethod(key.Curve())
	if err != nil {
		return nil, err
	}

	// Signing consumes the PEM form, the interop encoding for crypto tooling
	rawKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(key.PEM()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}

	s := &ECSigner{
		key:    rawKey,
		method: method,
		public: key.PublicKey(),
		kid:    kid,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignJWT signs claims, filling in iat and exp when unset
func (s *ECSigner) SignJWT(claims *types.AccessClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("claims are nil")
	}

	// Validate that payload matches key metadata
	if claims.Kid == "" {
		claims.Kid = s.kid
	}
	if claims.Kid != s.kid {
		return "", fmt.Errorf("payload kid (%s) does not match key kid (%s)", claims.Kid, s.kid)
	}

	now := s.now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(claims.IssuedAt.Add(s.ttl))
	}

	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.kid

	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s JWT: %w", s.method.Alg(), err)
	}
	return tokenString, nil
}

// Kid returns the key ID associated with this signer
func (s *ECSigner) Kid() string {
	return s.kid
}

// Algorithm returns the JWS algorithm used by this signer
func (s *ECSigner) Algorithm() string {
	return s.method.Alg()
}

// TTL returns the lifetime given to tokens without an expiry
func (s *ECSigner) TTL() time.Duration {
	return s.ttl
}

// PublicKey returns the verification key
func (s *ECSigner) PublicKey() ec.PublicKeyParameters {
	return s.public
}

// PublicKeyPEM returns the verification key in PEM format
func (s *ECSigner) PublicKeyPEM() (string, error) {
	return s.public.PEM()
}

// Verifier validates JWTs signed by the holder of one EC key
type Verifier struct {
	public       ec.PublicKeyParameters
	method       *jwt.SigningMethodECDSA
	kid          string
	issuer       string
	issuerDomain string
	audience     string
	leeway       time.Duration
	now          func() time.Time
}

// VerifierOption customizes a Verifier
type VerifierOption func(*Verifier)

// WithKid requires the token's kid header and claim to match
func WithKid(kid string) VerifierOption {
	return func(v *Verifier) { v.kid = kid }
}

// WithIssuer requires an exact iss claim
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithIssuerDomain requires the host of the iss claim to match
func WithIssuerDomain(domain string) VerifierOption {
	return func(v *Verifier) { v.issuerDomain = domain }
}

// WithAudience requires the aud claim to contain audience
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) { v.audience = audience }
}

// WithLeeway sets the tolerated clock skew
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = leeway }
}

// WithVerifierClock replaces time.Now, for tests
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier for tokens signed by the private half of public
func NewVerifier(public ec.PublicKeyParameters, opts ...VerifierOption) (*Verifier, error) {
	if public.IsZero() {
		return nil, fmt.Errorf("public key is empty")
	}
	method, err := internaljwt.SigningMethod(public.Curve())
	if err != nil {
		return nil, err
	}

	v := &Verifier{
		public: public,
		method: method,
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateJWT validates a token's signature and claims
func (v *Verifier) ValidateJWT(tokenString string) (*types.AccessClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &types.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if v.kid != "" {
			if kid, _ := token.Header["kid"].(string); kid != v.kid {
				return nil, fmt.Errorf("unexpected kid header: %v", token.Header["kid"])
			}
		}
		return v.public.ECDSA(), nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	// Extract and validate claims
	claims, ok := token.Claims.(*types.AccessClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	// Validate required fields
	if claims.Issuer == "" || claims.Kid == "" {
		return nil, fmt.Errorf("missing required JWT fields (issuer or kid)")
	}
	if v.kid != "" && claims.Kid != v.kid {
		return nil, fmt.Errorf("JWT kid claim does not match key kid")
	}
	if v.issuerDomain != "" && ExtractDomain(claims.Issuer) != v.issuerDomain {
		return nil, fmt.Errorf("JWT issuer domain does not match %s", v.issuerDomain)
	}

	return claims, nil
}

// LoadPrivateKey reads a PEM encoded EC private key from path
func LoadPrivateKey(path string) (*ec.PrivateKeyParameters, error) {
	if path == "" {
		return nil, fmt.Errorf("private key path not configured")
	}

	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", path, err)
	}

	key, err := ec.FromPEM(string(keyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key from %s: %w", path, err)
	}
	return key, nil
}

// ExtractDomain extracts the domain/host from a base URL
func ExtractDomain(baseURL string) string {
	if baseURL == "" {
		return ""
	}

	// Handle URLs with or without protocol
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		// If parsing fails, try to extract manually
		baseURL = strings.TrimPrefix(baseURL, "https://")
		baseURL = strings.TrimPrefix(baseURL, "http://")
		if idx := strings.Index(baseURL, "/"); idx > 0 {
			baseURL = baseURL[:idx]
		}
		return baseURL
	}

	return parsed.Host
}
