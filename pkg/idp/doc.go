// Package idp implements a simulated OpenID Connect identity provider for
// integration testing against a federation broker.
//
// The provider implements the authorization code flow end to end:
//
//   - Authorize mints a single-use authorization code and returns the
//     broker callback URL carrying code and state.
//   - ExchangeCode redeems the code for RS256-signed ID and access tokens
//     after verifying the grant type, redirect URI and client credentials.
//   - Keys publishes the active signing key as a one-element JWKS.
//   - UserInfo validates a bearer access token and returns a fixed
//     test-user profile.
//
// All state is process-local: the signing keypair is regenerated on every
// start and at most one authorization code is pending at a time. This is
// a test fixture, not a production identity provider - there is no user
// store, no refresh tokens and no scope negotiation.
//
// # Basic Usage
//
//	keypair, err := jwks.GenerateSigningKeypair(jwks.ModulusBase64Std)
//	if err != nil {
//		// fatal: the process cannot serve without a signing key
//	}
//
//	service, err := idp.NewService(idp.Config{
//		Issuer:          "https://abc123.ngrok.io",
//		BrokerDomainURL: "https://dev-000000.okta.com",
//		TestUser:        "test.user@example.com",
//		ClientID:        "idp-client-id",
//		ClientSecret:    "idp-client-secret",
//		BrokerClientID:  "broker-app-client-id",
//	}, keypair)
//
// The api subpackage mounts the four HTTP endpoints on a chi router.
package idp
