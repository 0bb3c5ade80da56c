package ec

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"strings"
)

const pemTypePKCS8 = "PRIVATE KEY"

// PrivateKeyDto is the JWK wire form of an EC private key: the public
// fields flattened together with the private scalar "d"
type PrivateKeyDto struct {
	D string `json:"d"` // base64url, no padding
	PublicKeyDto
}

// PrivateKeyParameters is an EC key pair. It stores the public key it was
// derived from and one canonical PKCS8 DER encoding of the pair; the PEM form
// is rendered from that DER on demand, so the two never diverge. Values are
// immutable once built.
type PrivateKeyParameters struct {
	public PublicKeyParameters
	pkcs8  Secret
}

// Generate creates a fresh key pair on curve using crypto/rand
func Generate(curve Curve) (*PrivateKeyParameters, error) {
	key, err := ecdsa.GenerateKey(curve.Group().Elliptic, rand.Reader)
	if err != nil {
		return nil, wrapKeyError(ErrCodeCryptoBackendFailure, curve.String()+" key generation failed", err)
	}
	return fromECDSA(key)
}

// FromPEM parses a PEM encoded EC private key in either a PKCS8 ("PRIVATE
// KEY") or SEC1 ("EC PRIVATE KEY") container. Blocks that hold no private key,
// such as the "EC PARAMETERS" block openssl writes ahead of the key, are
// skipped. The stored encodings are always regenerated by this package, never
// copied from the input.
func FromPEM(text string) (*PrivateKeyParameters, error) {
	block := privateKeyBlock([]byte(text))
	if block == nil {
		return nil, NewKeyError(ErrCodeInvalidPem, "failed to parse PEM block containing the key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, NewKeyErrorWithDetails(ErrCodeUnsupportedKeyType, "not an EC private key", fmt.Sprintf("%T", key))
		}
		return fromECDSA(ecKey)
	}

	ecKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err == nil {
		return fromECDSA(ecKey)
	}

	if _, rsaErr := x509.ParsePKCS1PrivateKey(block.Bytes); rsaErr == nil {
		return nil, NewKeyErrorWithDetails(ErrCodeUnsupportedKeyType, "not an EC private key", "RSA")
	}
	return nil, wrapKeyError(ErrCodeInvalidPem, "failed to parse EC private key from "+block.Type+" block", err)
}

// privateKeyBlock returns the first PEM block whose type names a private key
func privateKeyBlock(data []byte) *pem.Block {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return nil
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return block
		}
		data = rest
	}
}

// DecodePrivateKey validates a wire DTO and rebuilds the key pair it describes.
// The scalar must generate exactly the declared public point.
func DecodePrivateKey(dto PrivateKeyDto) (*PrivateKeyParameters, error) {
	public, err := DecodePublicKey(dto.PublicKeyDto)
	if err != nil {
		return nil, err
	}
	d, err := decodeFixed(public.curve, "d", dto.D)
	if err != nil {
		return nil, err
	}

	group := public.curve.Group()
	ecdhKey, err := group.ECDH.NewPrivateKey(d)
	if err != nil {
		return nil, wrapKeyError(ErrCodeInvalidKeyMaterial, "invalid "+group.Name+" private scalar", err)
	}
	if !bytes.Equal(ecdhKey.PublicKey().Bytes(), uncompressed(public.x, public.y)) {
		return nil, NewKeyErrorWithDetails(ErrCodeInvalidKeyMaterial, "private scalar does not match public key", group.Name)
	}

	// ecdh -> PKCS8 -> ecdsa, the 'd' bytes themselves are not PKCS8
	der, err := x509.MarshalPKCS8PrivateKey(ecdhKey)
	if err != nil {
		return nil, wrapKeyError(ErrCodeCryptoBackendFailure, "failed to marshal private key", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, wrapKeyError(ErrCodeCryptoBackendFailure, "failed to parse own private key", err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, NewKeyErrorWithDetails(ErrCodeCryptoBackendFailure, "unexpected key type parsing own private key", fmt.Sprintf("%T", key))
	}

	params, err := fromECDSA(ecKey)
	if err != nil {
		return nil, err
	}
	params.public = public
	return params, nil
}

// fromECDSA is the single construction path for PrivateKeyParameters: it
// derives the public key from the private scalar, checks it against the
// key's stated public point, and produces the canonical PKCS8 encoding.
func fromECDSA(key *ecdsa.PrivateKey) (*PrivateKeyParameters, error) {
	curve, err := curveOf(key.Curve)
	if err != nil {
		return nil, err
	}
	public, err := NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	// Extracting the point also proves the key is well formed: the
	// scalar must be in range and must generate the stated public point.
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, wrapKeyError(ErrCodeInvalidKeyMaterial, "invalid "+curve.String()+" private key", err)
	}
	if !bytes.Equal(ecdhKey.PublicKey().Bytes(), uncompressed(public.x, public.y)) {
		return nil, NewKeyErrorWithDetails(ErrCodeInvalidKeyMaterial, "private scalar does not match public key", curve.String())
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, wrapKeyError(ErrCodeCryptoBackendFailure, "failed to marshal private key", err)
	}
	return &PrivateKeyParameters{
		public: public,
		pkcs8:  newSecret(der),
	}, nil
}

// PublicKey returns the public half of the pair
func (k *PrivateKeyParameters) PublicKey() PublicKeyParameters {
	return k.public
}

// Curve returns the key's curve
func (k *PrivateKeyParameters) Curve() Curve {
	return k.public.curve
}

// PEM returns the key as PKCS8 PEM text
// WARNING: this exposes the private key material
func (k *PrivateKeyParameters) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8, Bytes: k.pkcs8.bytes()}))
}

// PKCS8 returns a copy of the PKCS8 DER encoding
// WARNING: this exposes the private key material
func (k *PrivateKeyParameters) PKCS8() []byte {
	return k.pkcs8.Expose()
}

// PKCS8Base64URL returns the PKCS8 DER encoding as unpadded base64url, the
// compact storage form
func (k *PrivateKeyParameters) PKCS8Base64URL() string {
	return b64.EncodeToString(k.pkcs8.bytes())
}

// ECDSA parses the stored encoding into a crypto/ecdsa private key
func (k *PrivateKeyParameters) ECDSA() (*ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(k.pkcs8.bytes())
	if err != nil {
		return nil, wrapKeyError(ErrCodeCryptoBackendFailure, "failed to parse stored private key", err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, NewKeyErrorWithDetails(ErrCodeCryptoBackendFailure, "stored key is not an EC key", fmt.Sprintf("%T", key))
	}
	return ecKey, nil
}

// IsZero reports whether k is nil or the zero value rather than a built key
func (k *PrivateKeyParameters) IsZero() bool {
	return k == nil || k.pkcs8.Len() == 0
}

// ToDTO encodes the key pair into its JWK wire form. The stored encoding was
// produced by this package, so failing to read it back is a programming error.
// It panics on the zero value; check IsZero for keys that may be unset.
func (k *PrivateKeyParameters) ToDTO() PrivateKeyDto {
	key, err := k.ECDSA()
	if err != nil {
		panic(fmt.Sprintf("ec: stored private key is unreadable: %v", err))
	}
	ecdhKey, err := key.ECDH()
	if err != nil {
		panic(fmt.Sprintf("ec: stored private key is unreadable: %v", err))
	}
	return PrivateKeyDto{
		D:            b64.EncodeToString(ecdhKey.Bytes()),
		PublicKeyDto: k.public.ToDTO(),
	}
}

// Equal compares the public keys and, in constant time, the private encodings
func (k *PrivateKeyParameters) Equal(other *PrivateKeyParameters) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.public.Equal(other.public) && k.pkcs8.Equal(other.pkcs8)
}

// Compare orders keys by public key, then by their PKCS8 encoding. It is
// not constant time and is meant for sorting, not for secret comparison.
func (k *PrivateKeyParameters) Compare(other *PrivateKeyParameters) int {
	switch {
	case k.IsZero() && other.IsZero():
		return 0
	case k.IsZero():
		return -1
	case other.IsZero():
		return 1
	}
	if c := k.public.Compare(other.public); c != 0 {
		return c
	}
	return bytes.Compare(k.pkcs8.bytes(), other.pkcs8.bytes())
}

// String renders the public key and a redaction marker in place of the
// private key. Value receivers keep this in effect when the struct itself,
// not a pointer, is formatted.
func (k PrivateKeyParameters) String() string {
	return fmt.Sprintf("PrivateKeyParameters{PublicKey: %s, PrivateKey: %s}", k.public, Redacted)
}

// GoString implements fmt.GoStringer
func (k PrivateKeyParameters) GoString() string {
	return k.String()
}

// Format implements fmt.Formatter; every verb renders String
func (k PrivateKeyParameters) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(k.String()))
}

// LogValue implements slog.LogValuer
func (k PrivateKeyParameters) LogValue() slog.Value {
	dto := k.public.ToDTO()
	return slog.GroupValue(
		slog.String("crv", dto.Crv),
		slog.String("x", dto.X),
		slog.String("y", dto.Y),
		slog.String("d", Redacted),
	)
}

// MarshalJSON encodes the key pair as a private JWK
// WARNING: the output contains the private key material
func (k *PrivateKeyParameters) MarshalJSON() ([]byte, error) {
	if k.IsZero() {
		return nil, NewKeyError(ErrCodeInvalidKeyMaterial, "cannot marshal empty private key")
	}
	return json.Marshal(k.ToDTO())
}

// UnmarshalJSON decodes and validates a private JWK
func (k *PrivateKeyParameters) UnmarshalJSON(data []byte) error {
	var dto PrivateKeyDto
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("failed to parse JWK JSON: %w", err)
	}
	parsed, err := DecodePrivateKey(dto)
	if err != nil {
		return err
	}
	*k = *parsed
	return nil
}
