// Package josekeys provides an HTTP client that authenticates outgoing requests
// with access tokens self-signed by an EC key
package josekeys

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OpsMx/jose-keys/pkg/ec"
	"github.com/OpsMx/jose-keys/pkg/jwt"
	"github.com/OpsMx/jose-keys/pkg/types"
)

// Environment variables read by ConfigFromEnv
const (
	EnvAudienceURL    = "JOSE_AUDIENCE_URL"
	EnvKid            = "JOSE_KID"
	EnvPrivateKey     = "JOSE_PRIVATE_KEY"
	EnvPrivateKeyFile = "JOSE_PRIVATE_KEY_FILE"
	EnvIssuerBaseURL  = "JOSE_ISSUER_BASE_URL"
	EnvTokenTTL       = "JOSE_TOKEN_TTL"
	EnvScope          = "JOSE_SCOPE"
)

// Config holds everything needed to build a Client
type Config struct {
	AudienceURL    string
	Kid            string
	PrivateKeyPEM  string
	PrivateKeyFile string
	IssuerBaseURL  string
	ServiceName    string
	Scope          string
	TokenTTL       time.Duration
}

// ConfigFromEnv reads the client configuration from environment variables.
// If serviceName is empty, the issuer is just the base URL.
func ConfigFromEnv(serviceName string) (Config, error) {
	cfg := Config{
		ServiceName: serviceName,
		Scope:       os.Getenv(EnvScope),
	}

	cfg.AudienceURL = os.Getenv(EnvAudienceURL)
	if cfg.AudienceURL == "" {
		return Config{}, NewClientError(ErrCodeConfigurationError, EnvAudienceURL+" environment variable is required")
	}

	cfg.Kid = os.Getenv(EnvKid)
	if cfg.Kid == "" {
		return Config{}, NewClientError(ErrCodeConfigurationError, EnvKid+" environment variable is required")
	}

	cfg.PrivateKeyPEM = os.Getenv(EnvPrivateKey)
	cfg.PrivateKeyFile = os.Getenv(EnvPrivateKeyFile)
	if cfg.PrivateKeyPEM == "" && cfg.PrivateKeyFile == "" {
		return Config{}, NewClientError(ErrCodeConfigurationError,
			EnvPrivateKey+" or "+EnvPrivateKeyFile+" environment variable is required")
	}

	cfg.IssuerBaseURL = os.Getenv(EnvIssuerBaseURL)
	if cfg.IssuerBaseURL == "" {
		return Config{}, NewClientError(ErrCodeConfigurationError, EnvIssuerBaseURL+" environment variable is required")
	}

	if ttl := os.Getenv(EnvTokenTTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return Config{}, NewClientErrorWithDetails(ErrCodeConfigurationError, "invalid "+EnvTokenTTL, ttl)
		}
		cfg.TokenTTL = d
	}

	return cfg, nil
}

// Issuer returns the issuer URL: the base URL, plus the service name when set
func (c Config) Issuer() string {
	base := strings.TrimSuffix(c.IssuerBaseURL, "/")
	if c.ServiceName == "" {
		return base
	}
	return base + "/" + c.ServiceName
}

// Client sends requests to one audience with self-signed access tokens
type Client struct {
	audienceURL string
	issuerURL   string
	signer      *jwt.ECSigner
	source      *SelfSignedTokenSource
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption customizes a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	base      http.RoundTripper
	logger    *slog.Logger
	predicate Predicate
	timeout   time.Duration
	now       func() time.Time
}

// WithBaseTransport sets the transport underneath the token middleware
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.base = rt }
}

// WithLogger sets the logger for the client and its token source
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithPredicate replaces the default predicate (HTTPS to the audience host only)
func WithPredicate(p Predicate) ClientOption {
	return func(o *clientOptions) { o.predicate = p }
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithClientClock replaces time.Now, for tests
func WithClientClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) { o.now = now }
}

// NewClient creates a client for the specified service from environment variables
func NewClient(serviceName string, opts ...ClientOption) (*Client, error) {
	cfg, err := ConfigFromEnv(serviceName)
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg, opts...)
}

// NewClientWithConfig creates a client from an explicit configuration
func NewClientWithConfig(cfg Config, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		logger:  slog.Default(),
		timeout: 30 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.AudienceURL == "" || cfg.Kid == "" || cfg.IssuerBaseURL == "" {
		return nil, NewClientError(ErrCodeConfigurationError, "audience URL, kid and issuer base URL are required")
	}

	key, err := loadKey(cfg)
	if err != nil {
		return nil, err
	}

	signerOpts := []jwt.SignerOption{jwt.WithSignerClock(o.now)}
	if cfg.TokenTTL > 0 {
		signerOpts = append(signerOpts, jwt.WithTTL(cfg.TokenTTL))
	}
	signer, err := jwt.NewSigner(key, cfg.Kid, signerOpts...)
	if err != nil {
		return nil, NewClientErrorWithDetails(ErrCodeKeyError, "failed to create signer", err.Error())
	}

	issuerURL := cfg.Issuer()
	source, err := NewSelfSignedTokenSource(signer, types.AccessClaims{
		Issuer:   issuerURL,
		Audience: cfg.AudienceURL,
		Scope:    cfg.Scope,
	}, WithTokenTTL(signer.TTL()), WithClock(o.now), WithTokenLogger(o.logger))
	if err != nil {
		return nil, err
	}

	// Tokens go only to the audience, and only over https
	predicate := o.predicate
	if predicate == nil {
		predicate = And(HTTPSOnly, ExactHostMatch(jwt.ExtractDomain(cfg.AudienceURL)))
	}

	httpClient := &http.Client{
		Timeout: o.timeout,
		Transport: &Transport{
			Source:    source,
			Base:      o.base,
			Predicate: predicate,
			Logger:    o.logger,
		},
	}

	o.logger.Debug("created access token client",
		"issuer", issuerURL,
		"audience", cfg.AudienceURL,
		"kid", cfg.Kid,
		"key", key,
	)

	return &Client{
		audienceURL: strings.TrimSuffix(cfg.AudienceURL, "/"),
		issuerURL:   issuerURL,
		signer:      signer,
		source:      source,
		httpClient:  httpClient,
		logger:      o.logger,
	}, nil
}

func loadKey(cfg Config) (*ec.PrivateKeyParameters, error) {
	var (
		key *ec.PrivateKeyParameters
		err error
	)
	if cfg.PrivateKeyPEM != "" {
		key, err = ec.FromPEM(cfg.PrivateKeyPEM)
	} else {
		key, err = jwt.LoadPrivateKey(cfg.PrivateKeyFile)
	}
	if err != nil {
		return nil, NewClientErrorWithDetails(ErrCodeKeyError, "failed to load EC private key", err.Error())
	}
	return key, nil
}

// HTTPClient returns the underlying authenticated HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Issuer returns the iss claim of minted tokens
func (c *Client) Issuer() string {
	return c.issuerURL
}

// Kid returns the key ID of the signing key
func (c *Client) Kid() string {
	return c.signer.Kid()
}

// PublicJWK returns the verification key to publish for the audience
func (c *Client) PublicJWK() ec.PublicKeyParameters {
	return c.signer.PublicKey()
}

// Token returns the current access token
func (c *Client) Token(ctx context.Context) (AccessToken, error) {
	return c.source.Token(ctx)
}

// Do sends a request through the authenticated client
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoJSON sends body as JSON to path on the audience and decodes the response into out.
// A nil body sends no payload; a nil out discards the response body.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader

	// Prepare request body if provided
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	url := c.audienceURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "jose-keys-client/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewClientErrorWithDetails(ErrCodeNetworkError, "HTTP request failed", err.Error())
	}
	defer resp.Body.Close()

	// Check for HTTP errors
	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized {
			// the audience may have rotated trust; mint a fresh token next time
			c.source.Invalidate()
		}
		return NewClientErrorWithDetails(ErrCodeHTTPError, fmt.Sprintf("HTTP %d", resp.StatusCode), string(bodyBytes))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
