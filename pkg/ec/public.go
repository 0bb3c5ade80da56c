package ec

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
)

// keyTypeEC is the JWK "kty" value for elliptic-curve keys
const keyTypeEC = "EC"

var b64 = base64.RawURLEncoding.Strict()

// PublicKeyDto is the JWK wire form of an EC public key
type PublicKeyDto struct {
	KeyType string `json:"kty,omitempty"`
	Crv     string `json:"crv"`
	X       string `json:"x"` // base64url, no padding
	Y       string `json:"y"` // base64url, no padding
}

// PublicKeyParameters is a validated EC public key: a curve and the affine
// coordinates of a point on it other than the identity. Coordinates are held
// as fixed-width big-endian bytes and never exposed for mutation.
type PublicKeyParameters struct {
	curve Curve
	x     []byte
	y     []byte
}

// NewPublicKey builds PublicKeyParameters from a backend public key, checking the point
func NewPublicKey(pub *ecdsa.PublicKey) (PublicKeyParameters, error) {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return PublicKeyParameters{}, NewKeyError(ErrCodeInvalidKeyMaterial, "public key is nil")
	}
	curve, err := curveOf(pub.Curve)
	if err != nil {
		return PublicKeyParameters{}, err
	}
	size := curve.ByteSize()
	if pub.X.Sign() < 0 || pub.Y.Sign() < 0 || pub.X.BitLen() > size*8 || pub.Y.BitLen() > size*8 {
		return PublicKeyParameters{}, NewKeyError(ErrCodePointNotOnCurve, "coordinate out of range")
	}
	return newPublicKey(curve, pub.X.FillBytes(make([]byte, size)), pub.Y.FillBytes(make([]byte, size)))
}

// newPublicKey checks that (x, y) is a point on the curve and not the identity.
// The uncompressed SEC1 encoding cannot represent the identity, so the ecdh
// parser covers both conditions, and also rejects coordinates >= p.
func newPublicKey(curve Curve, x, y []byte) (PublicKeyParameters, error) {
	group := curve.Group()
	if len(x) != group.ByteSize || len(y) != group.ByteSize {
		return PublicKeyParameters{}, NewKeyErrorWithDetails(ErrCodeInvalidCoordinateLength, "invalid coordinate length",
			fmt.Sprintf("%s requires %d bytes, got x=%d y=%d", group.Name, group.ByteSize, len(x), len(y)))
	}
	if _, err := group.ECDH.NewPublicKey(uncompressed(x, y)); err != nil {
		return PublicKeyParameters{}, wrapKeyError(ErrCodePointNotOnCurve, "point is not on curve "+group.Name, err)
	}
	return PublicKeyParameters{
		curve: curve,
		x:     bytes.Clone(x),
		y:     bytes.Clone(y),
	}, nil
}

func uncompressed(x, y []byte) []byte {
	point := make([]byte, 0, 1+len(x)+len(y))
	point = append(point, 0x04)
	point = append(point, x...)
	return append(point, y...)
}

// DecodePublicKey validates a wire DTO and returns the public key it describes
func DecodePublicKey(dto PublicKeyDto) (PublicKeyParameters, error) {
	if dto.KeyType != "" && dto.KeyType != keyTypeEC {
		return PublicKeyParameters{}, NewKeyErrorWithDetails(ErrCodeUnsupportedKeyType, "unsupported JWK key type", dto.KeyType)
	}
	curve, err := CurveFromName(dto.Crv)
	if err != nil {
		return PublicKeyParameters{}, err
	}
	x, err := decodeFixed(curve, "x", dto.X)
	if err != nil {
		return PublicKeyParameters{}, err
	}
	y, err := decodeFixed(curve, "y", dto.Y)
	if err != nil {
		return PublicKeyParameters{}, err
	}
	return newPublicKey(curve, x, y)
}

// decodeFixed decodes a base64url field element and requires the exact field
// width. Short or long values are rejected, never padded or truncated.
func decodeFixed(curve Curve, field, value string) ([]byte, error) {
	raw, err := b64.DecodeString(value)
	if err != nil {
		return nil, wrapKeyError(ErrCodeMalformedEncoding, fmt.Sprintf("invalid base64url in %q", field), err)
	}
	if size := curve.ByteSize(); len(raw) != size {
		return nil, NewKeyErrorWithDetails(ErrCodeInvalidCoordinateLength, "invalid coordinate length",
			fmt.Sprintf("%s %q requires %d bytes, got %d", curve, field, size, len(raw)))
	}
	return raw, nil
}

// ToDTO encodes the key into its JWK wire form
func (p PublicKeyParameters) ToDTO() PublicKeyDto {
	return PublicKeyDto{
		KeyType: keyTypeEC,
		Crv:     p.curve.String(),
		X:       b64.EncodeToString(p.x),
		Y:       b64.EncodeToString(p.y),
	}
}

// Curve returns the key's curve
func (p PublicKeyParameters) Curve() Curve {
	return p.curve
}

// X returns a copy of the affine x coordinate
func (p PublicKeyParameters) X() *big.Int {
	return new(big.Int).SetBytes(p.x)
}

// Y returns a copy of the affine y coordinate
func (p PublicKeyParameters) Y() *big.Int {
	return new(big.Int).SetBytes(p.y)
}

// ECDSA returns the key as a crypto/ecdsa public key, for signature verification
func (p PublicKeyParameters) ECDSA() *ecdsa.PublicKey {
	return &ecdsa.PublicKey{
		Curve: p.curve.Group().Elliptic,
		X:     p.X(),
		Y:     p.Y(),
	}
}

// PEM returns the public key in PKIX PEM format
func (p PublicKeyParameters) PEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(p.ECDSA())
	if err != nil {
		return "", wrapKeyError(ErrCodeCryptoBackendFailure, "failed to marshal public key", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// IsZero reports whether p is the zero value rather than a decoded key
func (p PublicKeyParameters) IsZero() bool {
	return p.curve == 0
}

// Equal reports whether both keys are the same point on the same curve
func (p PublicKeyParameters) Equal(other PublicKeyParameters) bool {
	return p.Compare(other) == 0
}

// Compare orders keys by curve, then x, then y
func (p PublicKeyParameters) Compare(other PublicKeyParameters) int {
	switch {
	case p.curve < other.curve:
		return -1
	case p.curve > other.curve:
		return 1
	}
	if c := bytes.Compare(p.x, other.x); c != 0 {
		return c
	}
	return bytes.Compare(p.y, other.y)
}

// String renders the curve and coordinates
func (p PublicKeyParameters) String() string {
	dto := p.ToDTO()
	return fmt.Sprintf("PublicKeyParameters{Curve: %s, X: %s, Y: %s}", dto.Crv, dto.X, dto.Y)
}

// MarshalJSON encodes the key as a JWK
func (p PublicKeyParameters) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return nil, NewKeyError(ErrCodeInvalidKeyMaterial, "cannot marshal empty public key")
	}
	return json.Marshal(p.ToDTO())
}

// UnmarshalJSON decodes and validates a JWK
func (p *PublicKeyParameters) UnmarshalJSON(data []byte) error {
	var dto PublicKeyDto
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("failed to parse JWK JSON: %w", err)
	}
	parsed, err := DecodePublicKey(dto)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
