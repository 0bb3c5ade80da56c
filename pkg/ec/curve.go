// Package ec provides elliptic-curve key material for JOSE: JWK encoding, PEM and PKCS8 import/export
package ec

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"fmt"
)

// Curve identifies one of the supported NIST curves
type Curve uint8

const (
	P256 Curve = iota + 1
	P384
	P521
)

// GroupParameters holds what the codecs need to build and check points on a curve
type GroupParameters struct {
	Name     string
	Elliptic elliptic.Curve
	ECDH     ecdh.Curve
	ByteSize int // field element width in bytes
}

var registry = map[Curve]*GroupParameters{
	P256: {Name: "P-256", Elliptic: elliptic.P256(), ECDH: ecdh.P256(), ByteSize: 32},
	P384: {Name: "P-384", Elliptic: elliptic.P384(), ECDH: ecdh.P384(), ByteSize: 48},
	P521: {Name: "P-521", Elliptic: elliptic.P521(), ECDH: ecdh.P521(), ByteSize: 66},
}

// Curves returns every supported curve in a stable order
func Curves() []Curve {
	return []Curve{P256, P384, P521}
}

// Group resolves the curve to its group parameters. Every value of the
// enumeration has an entry; anything else is a programming error and panics.
func (c Curve) Group() *GroupParameters {
	g, ok := registry[c]
	if !ok {
		panic(fmt.Sprintf("ec: no group parameters registered for curve %d", uint8(c)))
	}
	return g
}

// String returns the IANA JOSE curve name
func (c Curve) String() string {
	if g, ok := registry[c]; ok {
		return g.Name
	}
	return fmt.Sprintf("Curve(%d)", uint8(c))
}

// ByteSize returns the field element width in bytes
func (c Curve) ByteSize() int {
	return c.Group().ByteSize
}

// MarshalText implements encoding.TextMarshaler
func (c Curve) MarshalText() ([]byte, error) {
	g, ok := registry[c]
	if !ok {
		return nil, NewKeyErrorWithDetails(ErrCodeUnknownCurve, "unknown curve", c.String())
	}
	return []byte(g.Name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Curve) UnmarshalText(text []byte) error {
	parsed, err := CurveFromName(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CurveFromName looks up a curve by its JOSE "crv" name
func CurveFromName(name string) (Curve, error) {
	for _, c := range Curves() {
		if registry[c].Name == name {
			return c, nil
		}
	}
	return 0, NewKeyErrorWithDetails(ErrCodeUnknownCurve, "unknown curve", name)
}

// curveOf maps a backend curve back to the enumeration
func curveOf(curve elliptic.Curve) (Curve, error) {
	if curve == nil {
		return 0, NewKeyError(ErrCodeUnsupportedKeyType, "key has no curve")
	}
	name := curve.Params().Name
	for _, c := range Curves() {
		if registry[c].Elliptic.Params().Name == name {
			return c, nil
		}
	}
	return 0, NewKeyErrorWithDetails(ErrCodeUnsupportedKeyType, "unsupported curve", name)
}
