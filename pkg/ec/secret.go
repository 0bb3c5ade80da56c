package ec

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
)

// Redacted is the only text any Secret ever renders as
const Redacted = "<redacted>"

// Secret holds secret bytes. Every textual rendering (fmt verbs, text
// marshalling, slog) prints Redacted; the bytes are reachable only through
// Expose.
//
// The bytes sit behind a pointer: when a Secret is nested in an unexported
// field, fmt cannot call its methods and walks the struct instead, and a
// nested pointer is printed as an address only.
type Secret struct {
	b *[]byte
}

func newSecret(b []byte) Secret {
	buf := append([]byte(nil), b...)
	return Secret{b: &buf}
}

func (s Secret) bytes() []byte {
	if s.b == nil {
		return nil
	}
	return *s.b
}

// Expose returns a copy of the secret bytes
func (s Secret) Expose() []byte {
	return append([]byte(nil), s.bytes()...)
}

// Len returns the length of the secret in bytes
func (s Secret) Len() int {
	return len(s.bytes())
}

// Equal compares two secrets in constant time
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare(s.bytes(), other.bytes()) == 1
}

// String implements fmt.Stringer
func (s Secret) String() string {
	return Redacted
}

// GoString implements fmt.GoStringer
func (s Secret) GoString() string {
	return Redacted
}

// Format implements fmt.Formatter so that %x, %v, %+v and friends all redact
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

// MarshalText implements encoding.TextMarshaler
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}

// LogValue implements slog.LogValuer
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(Redacted)
}
