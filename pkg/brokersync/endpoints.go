package brokersync

import "strings"

// Transport bindings the broker understands for each endpoint
const (
	BindingRedirect = "HTTP-REDIRECT"
	BindingPOST     = "HTTP-POST"
)

// Endpoint is one registered IdP endpoint: its URL plus transport binding
type Endpoint struct {
	URL     string `json:"url"`
	Binding string `json:"binding"`
}

// EndpointSet is the broker's view of this IdP's endpoints. It must stay
// byte-for-byte consistent with the routes the service actually mounts;
// the discovery document is derived from the same set.
type EndpointSet struct {
	Authorization Endpoint  `json:"authorization"`
	Token         Endpoint  `json:"token"`
	Jwks          Endpoint  `json:"jwks"`
	UserInfo      *Endpoint `json:"userInfo,omitempty"`
}

// EndpointsForIssuer derives the endpoint set from the issuer base URL.
// The userinfo endpoint is advertised only when the userinfo flow is
// enabled; the route itself is always mounted.
func EndpointsForIssuer(issuer string, userinfoEnabled bool) EndpointSet {
	base := strings.TrimSuffix(issuer, "/")

	set := EndpointSet{
		Authorization: Endpoint{URL: base + "/authorize", Binding: BindingRedirect},
		Token:         Endpoint{URL: base + "/token", Binding: BindingPOST},
		Jwks:          Endpoint{URL: base + "/keys", Binding: BindingRedirect},
	}
	if userinfoEnabled {
		set.UserInfo = &Endpoint{URL: base + "/userinfo", Binding: BindingRedirect}
	}
	return set
}
