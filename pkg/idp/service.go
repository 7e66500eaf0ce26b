package idp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/idplab/mockidp/pkg/authcode"
	"github.com/idplab/mockidp/pkg/jwks"
	"github.com/idplab/mockidp/pkg/tokensigner"
)

// GrantTypeAuthorizationCode is the only grant type the token endpoint
// accepts
const GrantTypeAuthorizationCode = "authorization_code"

// brokerCallbackPath is the broker's fixed callback path under its domain
// URL; the token endpoint only honors redirect URIs that resolve there.
const brokerCallbackPath = "/oauth2/v1/authorize/callback"

// Config is the immutable identity provider configuration, constructed
// once at startup and passed to NewService.
type Config struct {
	// Issuer is this service's public base URL, used as the iss claim
	Issuer string

	// BrokerDomainURL is the broker organization's base URL
	BrokerDomainURL string

	// TestUser is the single simulated identity returned in all profile
	// claims
	TestUser string

	// ClientID and ClientSecret are the credentials the broker presents
	// at the token endpoint
	ClientID     string
	ClientSecret string

	// BrokerClientID is the broker-side application client id, used as
	// the token audience
	BrokerClientID string
}

// TokenRequest carries the form parameters of a token-endpoint call
type TokenRequest struct {
	Code         string
	GrantType    string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// TokenResponse is the successful token-endpoint response body
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// Profile is the fixed userinfo response. All fields carry the configured
// test-user identity.
type Profile struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
}

// Service implements the identity provider's protocol operations:
// authorization code issuance, code-for-token exchange, key publication
// and bearer-token validation for userinfo.
type Service struct {
	cfg     Config
	keypair *jwks.SigningKeypair
	codes   *authcode.Store
	signer  *tokensigner.Signer
	jwtAuth *jwtauth.JWTAuth

	// bcrypt hash of the expected client secret, computed once at startup
	hashedClientSecret []byte

	// pre-computed broker callback URL the token endpoint requires
	expectedRedirectURI string
}

// NewService creates the identity provider service around the process
// signing keypair.
func NewService(cfg Config, keypair *jwks.SigningKeypair) (*Service, error) {
	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(cfg.ClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash client secret: %w", err)
	}

	return &Service{
		cfg:                 cfg,
		keypair:             keypair,
		codes:               authcode.NewStore(),
		signer:              tokensigner.New(keypair, cfg.Issuer, cfg.BrokerClientID),
		jwtAuth:             jwtauth.New("RS256", keypair.PrivateKey, keypair.PublicKey),
		hashedClientSecret:  hashedSecret,
		expectedRedirectURI: strings.TrimSuffix(cfg.BrokerDomainURL, "/") + brokerCallbackPath,
	}, nil
}

// Authorize begins the flow: it mints a fresh authorization code bound to
// the in-flight request and returns the callback URL the login page hands
// control back through. state and redirectURI are echoed back verbatim;
// the caller is this IdP's own login page simulation, not an untrusted
// redirect target.
func (s *Service) Authorize(state, redirectURI string) (string, error) {
	if state == "" {
		return "", ErrMissingParameter{Name: "state"}
	}
	if redirectURI == "" {
		return "", ErrMissingParameter{Name: "redirect_uri"}
	}

	code, err := s.codes.Issue()
	if err != nil {
		return "", err
	}

	callbackURL, err := buildCallbackURL(redirectURI, code, state)
	if err != nil {
		return "", err
	}

	slog.Info("Issued authorization code", "state", state)
	return callbackURL, nil
}

// ExchangeCode redeems an authorization code for signed ID and access
// tokens. All five checks must hold: the code matches the pending slot,
// the grant type is authorization_code, the redirect URI is the expected
// broker callback, and the client credentials match. Any single failure
// yields ErrUnauthorized with no indication of which check failed.
func (s *Service) ExchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	ok := req.GrantType == GrantTypeAuthorizationCode &&
		req.RedirectURI == s.expectedRedirectURI &&
		req.ClientID == s.cfg.ClientID &&
		bcrypt.CompareHashAndPassword(s.hashedClientSecret, []byte(req.ClientSecret)) == nil

	// Redeem last so a request failing the static checks leaves the
	// pending code intact. Redemption consumes the code.
	if !ok || !s.codes.Redeem(req.Code) {
		slog.Warn("Rejected token exchange", "grant_type", req.GrantType, "client_id", req.ClientID)
		return nil, ErrUnauthorized
	}

	now := time.Now().UTC()

	idToken, err := s.signer.IssueIDToken(s.cfg.TestUser, now)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.signer.IssueAccessToken(s.cfg.TestUser, now)
	if err != nil {
		return nil, err
	}

	slog.Info("Issued tokens", "sub", s.cfg.TestUser, "kid", s.signer.KeyID())
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(tokensigner.TokenLifetime.Seconds()),
		IDToken:     idToken,
	}, nil
}

// UserInfo validates a bearer access token and returns the fixed profile.
// The token's signature, algorithm, audience, expiry and issuer must all
// check out; every failure collapses to ErrUnauthorized.
func (s *Service) UserInfo(ctx context.Context, authorization string) (*Profile, error) {
	raw, found := strings.CutPrefix(authorization, "Bearer ")
	if !found || raw == "" {
		return nil, ErrUnauthorized
	}

	// Signature, algorithm and standard time claims are checked here;
	// only RS256 tokens under the current public key verify.
	token, err := jwtauth.VerifyToken(s.jwtAuth, raw)
	if err != nil {
		slog.Warn("Rejected bearer token", "err", err)
		return nil, ErrUnauthorized
	}

	if !containsAudience(token.Audience(), s.cfg.BrokerClientID) {
		return nil, ErrUnauthorized
	}

	// Expiry and issuer are re-checked explicitly even though signature
	// verification already enforces expiry.
	if !token.Expiration().After(time.Now().UTC()) {
		return nil, ErrUnauthorized
	}
	if token.Issuer() != s.cfg.Issuer {
		return nil, ErrUnauthorized
	}

	user := s.cfg.TestUser
	return &Profile{
		Sub:               user,
		PreferredUsername: user,
		Email:             user,
		GivenName:         user,
		FamilyName:        user,
	}, nil
}

// Keys returns the published key set: exactly one entry for the active
// signing keypair. JWKS endpoints are public by protocol convention.
func (s *Service) Keys() jwks.JWKS {
	return s.keypair.ToJWKS()
}

// ExpectedRedirectURI returns the broker callback URL the token endpoint
// requires
func (s *Service) ExpectedRedirectURI() string {
	return s.expectedRedirectURI
}

// buildCallbackURL constructs the redirect target carrying the code and
// state back to the broker
func buildCallbackURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect_uri: %w", err)
	}

	q := u.Query()
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func containsAudience(audience []string, clientID string) bool {
	for _, aud := range audience {
		if aud == clientID {
			return true
		}
	}
	return false
}
