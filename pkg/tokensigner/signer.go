// Package tokensigner builds and signs the ID and access tokens issued by
// the token endpoint.
package tokensigner

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idplab/mockidp/pkg/jwks"
)

// TokenLifetime is the fixed lifetime of issued tokens
const TokenLifetime = time.Hour

// IDTokenClaims is the ID token claim set: the registered claims plus the
// fixed user profile. The access token carries the registered claims only.
type IDTokenClaims struct {
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	jwt.RegisteredClaims
}

// Signer signs tokens with the process signing keypair using RS256,
// embedding the key id in the token header.
type Signer struct {
	keypair  *jwks.SigningKeypair
	issuer   string
	audience string
}

// New creates a Signer bound to the given keypair, issuer and audience
func New(keypair *jwks.SigningKeypair, issuer, audience string) *Signer {
	return &Signer{
		keypair:  keypair,
		issuer:   issuer,
		audience: audience,
	}
}

// IssueIDToken signs an ID token for user at time now. The subject and all
// profile claims carry the same test-user value; there is no user store
// behind this simulator.
func (s *Signer) IssueIDToken(user string, now time.Time) (string, error) {
	claims := IDTokenClaims{
		PreferredUsername: user,
		Email:             user,
		GivenName:         user,
		FamilyName:        user,
		RegisteredClaims:  s.registeredClaims(user, now),
	}
	return s.sign(claims)
}

// IssueAccessToken signs an access token for user at time now. Access
// tokens carry only subject, audience, issuer and time claims.
func (s *Signer) IssueAccessToken(user string, now time.Time) (string, error) {
	claims := s.registeredClaims(user, now)
	return s.sign(claims)
}

// KeyID returns the key id embedded in signed token headers
func (s *Signer) KeyID() string {
	return s.keypair.Kid
}

func (s *Signer) registeredClaims(subject string, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{s.audience},
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
	}
}

func (s *Signer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keypair.Kid

	signed, err := token.SignedString(s.keypair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
