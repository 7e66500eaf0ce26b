// Package wellknown serves the OpenID Connect discovery document. The
// advertised endpoints are derived from the same endpoint set the broker
// synchronizer registers, so the two views of the IdP cannot drift apart.
package wellknown

import "github.com/idplab/mockidp/pkg/brokersync"

// Config holds the inputs for the discovery document
type Config struct {
	// Issuer is this service's public base URL
	Issuer string

	// UserinfoEnabled controls whether the userinfo endpoint is advertised
	UserinfoEnabled bool
}

// OpenIDConfiguration is the OpenID Connect Discovery 1.0 metadata
// describing this provider
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint,omitempty"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// NewOpenIDConfiguration builds the discovery metadata for the issuer
func NewOpenIDConfiguration(config Config) *OpenIDConfiguration {
	endpoints := brokersync.EndpointsForIssuer(config.Issuer, config.UserinfoEnabled)

	metadata := &OpenIDConfiguration{
		Issuer:                           config.Issuer,
		AuthorizationEndpoint:            endpoints.Authorization.URL,
		TokenEndpoint:                    endpoints.Token.URL,
		JwksURI:                          endpoints.Jwks.URL,
		ResponseTypesSupported:           []string{"code"},
		GrantTypesSupported:              []string{"authorization_code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
	}
	if endpoints.UserInfo != nil {
		metadata.UserinfoEndpoint = endpoints.UserInfo.URL
	}
	return metadata
}
