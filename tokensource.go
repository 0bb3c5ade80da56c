package josekeys

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/OpsMx/jose-keys/pkg/jwt"
	"github.com/OpsMx/jose-keys/pkg/types"
)

// DefaultStaleFraction is the share of a token's lifetime left when it is replaced
const DefaultStaleFraction = 0.25

// SelfSignedTokenSource mints access tokens signed with the caller's own EC
// key and reuses each one until it goes stale. Tokens are refreshed lazily on
// the next call; there is no background refresh.
type SelfSignedTokenSource struct {
	signer   jwt.Signer
	template types.AccessClaims
	ttl      time.Duration
	stale    float64
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	current AccessToken
}

var _ TokenSource = (*SelfSignedTokenSource)(nil)

// TokenSourceOption customizes a SelfSignedTokenSource
type TokenSourceOption func(*SelfSignedTokenSource)

// WithTokenTTL sets the lifetime of minted tokens
func WithTokenTTL(ttl time.Duration) TokenSourceOption {
	return func(s *SelfSignedTokenSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStaleFraction sets how much lifetime must remain for a cached token to be reused
func WithStaleFraction(fraction float64) TokenSourceOption {
	return func(s *SelfSignedTokenSource) {
		if fraction >= 0 && fraction < 1 {
			s.stale = fraction
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) TokenSourceOption {
	return func(s *SelfSignedTokenSource) {
		s.now = now
	}
}

// WithTokenLogger sets the logger; tokens themselves are never logged
func WithTokenLogger(logger *slog.Logger) TokenSourceOption {
	return func(s *SelfSignedTokenSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelfSignedTokenSource creates a token source. template supplies the
// issuer, audience, subject and scope of every minted token.
func NewSelfSignedTokenSource(signer jwt.Signer, template types.AccessClaims, opts ...TokenSourceOption) (*SelfSignedTokenSource, error) {
	if signer == nil {
		return nil, NewClientError(ErrCodeConfigurationError, "signer is required")
	}
	if template.Issuer == "" {
		return nil, NewClientError(ErrCodeConfigurationError, "issuer is required")
	}

	s := &SelfSignedTokenSource{
		signer:   signer,
		template: template,
		ttl:      jwt.DefaultTTL,
		stale:    DefaultStaleFraction,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns the cached token, minting a new one when it is stale
func (s *SelfSignedTokenSource) Token(ctx context.Context) (AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return AccessToken{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.current.Stale(now, s.stale) {
		return s.current, nil
	}

	token, err := s.mint(now)
	if err != nil {
		s.logger.Warn("failed to mint access token", "kid", s.signer.Kid(), "error", err)
		return AccessToken{}, err
	}
	s.current = token

	s.logger.Debug("minted access token",
		"kid", s.signer.Kid(),
		"audience", s.template.Audience,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

func (s *SelfSignedTokenSource) mint(now time.Time) (AccessToken, error) {
	claims := s.template
	claims.Kid = s.signer.Kid()
	claims.ID = uuid.NewString()
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.ExpiresAt = gojwt.NewNumericDate(claims.IssuedAt.Add(s.ttl))

	value, err := s.signer.SignJWT(&claims)
	if err != nil {
		return AccessToken{}, NewClientErrorWithDetails(ErrCodeTokenError, "failed to sign access token", err.Error())
	}

	return AccessToken{
		Value:     value,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Invalidate drops the cached token so the next call mints a fresh one
func (s *SelfSignedTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = AccessToken{}
}

// StaticTokenSource always returns the same token
type StaticTokenSource AccessToken

// Token implements TokenSource
func (s StaticTokenSource) Token(ctx context.Context) (AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return AccessToken{}, err
	}
	if s.Value == "" {
		return AccessToken{}, fmt.Errorf("static token is empty")
	}
	return AccessToken(s), nil
}
