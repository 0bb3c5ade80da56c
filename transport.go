package josekeys

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// PredicateResult is the outcome of evaluating a Predicate
type PredicateResult int

const (
	// Ignore leaves the request untouched
	Ignore PredicateResult = iota
	// Attach adds the access token to the request
	Attach
)

// Predicate decides whether an access token is attached to a request
type Predicate interface {
	Evaluate(req *http.Request) PredicateResult
}

// PredicateFunc adapts a function to a Predicate
type PredicateFunc func(req *http.Request) PredicateResult

// Evaluate implements Predicate
func (f PredicateFunc) Evaluate(req *http.Request) PredicateResult {
	return f(req)
}

// HTTPSOnly attaches tokens only to requests sent over https
var HTTPSOnly Predicate = PredicateFunc(func(req *http.Request) PredicateResult {
	if req.URL != nil && strings.EqualFold(req.URL.Scheme, "https") {
		return Attach
	}
	return Ignore
})

// AllRequests attaches tokens to every request
var AllRequests Predicate = PredicateFunc(func(*http.Request) PredicateResult {
	return Attach
})

// ExactHostMatch attaches tokens only to requests for host. A host given
// with a port must match the port as well.
func ExactHostMatch(host string) Predicate {
	return PredicateFunc(func(req *http.Request) PredicateResult {
		if req.URL == nil {
			return Ignore
		}
		target := req.URL.Hostname()
		if strings.Contains(host, ":") {
			target = req.URL.Host
		}
		if strings.EqualFold(target, host) {
			return Attach
		}
		return Ignore
	})
}

// And attaches only when every predicate attaches
func And(predicates ...Predicate) Predicate {
	return PredicateFunc(func(req *http.Request) PredicateResult {
		for _, p := range predicates {
			if p.Evaluate(req) != Attach {
				return Ignore
			}
		}
		return Attach
	})
}

// Or attaches when any predicate attaches
func Or(predicates ...Predicate) Predicate {
	return PredicateFunc(func(req *http.Request) PredicateResult {
		for _, p := range predicates {
			if p.Evaluate(req) == Attach {
				return Attach
			}
		}
		return Ignore
	})
}

// Not inverts a predicate
func Not(predicate Predicate) Predicate {
	return PredicateFunc(func(req *http.Request) PredicateResult {
		if predicate.Evaluate(req) == Attach {
			return Ignore
		}
		return Attach
	})
}

// Transport is an http.RoundTripper that adds "Authorization: Bearer" with
// the current access token. A request that already carries an Authorization
// header is sent as is.
type Transport struct {
	// Source supplies tokens. Required.
	Source TokenSource

	// Base is the underlying transport, http.DefaultTransport when nil
	Base http.RoundTripper

	// Predicate selects the requests that get a token, HTTPSOnly when nil
	Predicate Predicate

	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.predicate().Evaluate(req) != Attach || req.Header.Get("Authorization") != "" {
		return t.base().RoundTrip(req)
	}
	if t.Source == nil {
		closeBody(req)
		return nil, NewClientError(ErrCodeConfigurationError, "transport has no token source")
	}

	token, err := t.Source.Token(req.Context())
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	// RoundTrippers must not modify the caller's request
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token.Value)

	t.logger().Debug("attached access token",
		"host", req.URL.Host,
		"method", req.Method,
		"expires_at", token.ExpiresAt,
	)
	return t.base().RoundTrip(authed)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) predicate() Predicate {
	if t.Predicate != nil {
		return t.Predicate
	}
	return HTTPSOnly
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
