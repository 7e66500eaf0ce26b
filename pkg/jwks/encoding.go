package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// ModulusEncoding selects how the JWKS "n" field is encoded.
//
// RFC 7518 specifies base64url without padding, but the broker this
// simulator was built against consumes plain standard base64 (with
// padding) of the big-endian modulus bytes. The encoding is configurable
// rather than hard-coded so either convention can be targeted; the
// discrepancy is deliberate and documented, not silently resolved.
type ModulusEncoding string

const (
	// ModulusBase64Std is standard base64 with padding, as the reference
	// broker expects. This is the default.
	ModulusBase64Std ModulusEncoding = "base64"

	// ModulusBase64URL is base64url without padding, the conventional
	// JWK "n" encoding per RFC 7518.
	ModulusBase64URL ModulusEncoding = "base64url"
)

// ParseModulusEncoding validates a configured encoding name
func ParseModulusEncoding(s string) (ModulusEncoding, error) {
	switch ModulusEncoding(s) {
	case ModulusBase64Std, ModulusBase64URL:
		return ModulusEncoding(s), nil
	case "":
		return ModulusBase64Std, nil
	default:
		return "", fmt.Errorf("unknown modulus encoding: %q (expected %q or %q)", s, ModulusBase64Std, ModulusBase64URL)
	}
}

// Encode encodes the RSA public key modulus with this encoding
func (e ModulusEncoding) Encode(publicKey *rsa.PublicKey) string {
	switch e {
	case ModulusBase64URL:
		return base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())
	default:
		return base64.StdEncoding.EncodeToString(publicKey.N.Bytes())
	}
}

// EncodeRSAPublicKeyExponent encodes the RSA public key exponent as
// base64url. For the fixed exponent 65537 this is always "AQAB".
func EncodeRSAPublicKeyExponent(publicKey *rsa.PublicKey) string {
	exponentBytes := big.NewInt(int64(publicKey.E)).Bytes()
	return base64.RawURLEncoding.EncodeToString(exponentBytes)
}
