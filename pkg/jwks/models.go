package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/google/uuid"
)

// JWKS represents a JSON Web Key Set as defined in RFC 7517
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key as defined in RFC 7517
type JWK struct {
	// Key Type - "RSA" for RSA keys
	Kty string `json:"kty"`

	// Public Key Use - "sig" for signature
	Use string `json:"use"`

	// Key ID - unique identifier for this key
	Kid string `json:"kid"`

	// Algorithm - "RS256" for RSA with SHA-256
	Alg string `json:"alg"`

	// RSA public key modulus, encoded per the keypair's ModulusEncoding
	N string `json:"n"`

	// RSA public key exponent
	E string `json:"e"`
}

// SigningKeypair is the single active RSA keypair of the process.
// It is generated once at startup and shared immutably afterwards by
// the token issuer and the JWKS endpoint.
type SigningKeypair struct {
	// Kid is the key identifier carried in token headers and the JWKS entry
	Kid string

	// Alg is the signing algorithm used with this key
	Alg string

	// PrivateKey is the RSA private key used for signing
	PrivateKey *rsa.PrivateKey

	// PublicKey is derived from PrivateKey
	PublicKey *rsa.PublicKey

	// Modulus is the public modulus n, pre-encoded with the encoding the
	// broker expects (see ModulusEncoding)
	Modulus string
}

// GenerateSigningKeypair generates a fresh 2048-bit RSA keypair with a
// random key id. The modulus is encoded eagerly so every consumer of the
// keypair sees the same string. Generation failure is fatal to startup;
// callers are expected to abort rather than retry.
func GenerateSigningKeypair(enc ModulusEncoding) (*SigningKeypair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}

	return &SigningKeypair{
		Kid:        uuid.New().String(),
		Alg:        "RS256",
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		Modulus:    enc.Encode(&privateKey.PublicKey),
	}, nil
}

// ToJWK converts the keypair to its public JWK form
func (kp *SigningKeypair) ToJWK() JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.Kid,
		Alg: kp.Alg,
		N:   kp.Modulus,
		E:   EncodeRSAPublicKeyExponent(kp.PublicKey),
	}
}

// ToJWKS returns a one-element key set containing this keypair
func (kp *SigningKeypair) ToJWKS() JWKS {
	return JWKS{Keys: []JWK{kp.ToJWK()}}
}
