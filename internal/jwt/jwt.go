// Package jwt maps EC curves to their JWS signing algorithms
package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/OpsMx/jose-keys/pkg/ec"
)

// Each curve has exactly one ECDSA algorithm (RFC 7518 section 3.4):
//   - P-256 -> ES256
//   - P-384 -> ES384
//   - P-521 -> ES512
var methods = map[ec.Curve]*jwt.SigningMethodECDSA{
	ec.P256: jwt.SigningMethodES256,
	ec.P384: jwt.SigningMethodES384,
	ec.P521: jwt.SigningMethodES512,
}

// SigningMethod returns the JWS algorithm for keys on curve
func SigningMethod(curve ec.Curve) (*jwt.SigningMethodECDSA, error) {
	m, ok := methods[curve]
	if !ok {
		return nil, fmt.Errorf("no signing method for curve %s", curve)
	}
	return m, nil
}
