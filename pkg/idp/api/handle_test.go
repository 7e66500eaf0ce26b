package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idplab/mockidp/pkg/idp"
	"github.com/idplab/mockidp/pkg/jwks"
)

const (
	testIssuer       = "https://idp.example.test"
	testBrokerDomain = "https://broker.example.test"
	testUser         = "test.user@example.com"
	testClientID     = "idp-client-id"
	testClientSecret = "idp-client-secret"
	testBrokerClient = "broker-app-client-id"
)

// codePattern matches the authorization code in the rendered login page.
// html/template escapes the ampersands in the href, so the code is pulled
// out by pattern rather than by parsing the query string.
var codePattern = regexp.MustCompile(`code=([A-Z0-9]{10})`)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	keypair, err := jwks.GenerateSigningKeypair(jwks.ModulusBase64Std)
	require.NoError(t, err)

	service, err := idp.NewService(idp.Config{
		Issuer:          testIssuer,
		BrokerDomainURL: testBrokerDomain,
		TestUser:        testUser,
		ClientID:        testClientID,
		ClientSecret:    testClientSecret,
		BrokerClientID:  testBrokerClient,
	}, keypair)
	require.NoError(t, err)

	r := chi.NewRouter()
	Routes(r, NewHandle(service))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

// authorize drives GET /authorize and extracts the issued code
func authorize(t *testing.T, server *httptest.Server, state string) string {
	t.Helper()
	resp, err := http.Get(server.URL + "/authorize?state=" + state + "&redirect_uri=" + url.QueryEscape(testBrokerDomain+"/cb"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	match := codePattern.FindSubmatch(body)
	require.NotNil(t, match, "login page must carry an authorization code")
	return string(match[1])
}

func tokenForm(code string) url.Values {
	return url.Values{
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {testBrokerDomain + "/oauth2/v1/authorize/callback"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	}
}

func postToken(t *testing.T, server *httptest.Server, form url.Values) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(server.URL+"/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestAuthorizeEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("RendersLoginPageWithCallback", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/authorize?state=xyz789&redirect_uri=" + url.QueryEscape(testBrokerDomain+"/cb"))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		page := string(body)
		assert.Contains(t, page, "broker.example.test/cb")
		assert.Contains(t, page, "state=xyz789")
		assert.Regexp(t, codePattern, page)
	})

	t.Run("MissingStateIsBadRequest", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/authorize?redirect_uri=" + url.QueryEscape(testBrokerDomain+"/cb"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Contains(t, errResp.Error, "state")
	})

	t.Run("MissingRedirectURIIsBadRequest", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/authorize?state=xyz789")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTokenEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("Success", func(t *testing.T) {
		code := authorize(t, server, "state1")

		resp, body := postToken(t, server, tokenForm(code))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var tokenResp idp.TokenResponse
		require.NoError(t, json.Unmarshal(body, &tokenResp))
		assert.Equal(t, "bearer", tokenResp.TokenType)
		assert.Equal(t, 3600, tokenResp.ExpiresIn)
		assert.NotEmpty(t, tokenResp.AccessToken)
		assert.NotEmpty(t, tokenResp.IDToken)
	})

	t.Run("ImplicitGrantRejected", func(t *testing.T) {
		code := authorize(t, server, "state2")

		form := tokenForm(code)
		form.Set("grant_type", "implicit")

		resp, body := postToken(t, server, form)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, string(body))
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		code := authorize(t, server, "state3")

		form := tokenForm(code)
		form.Set("client_secret", "wrong")

		resp, body := postToken(t, server, form)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, string(body))
	})

	t.Run("ReplayedCodeRejected", func(t *testing.T) {
		code := authorize(t, server, "state4")

		resp, _ := postToken(t, server, tokenForm(code))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := postToken(t, server, tokenForm(code))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, string(body))
	})

	t.Run("EmptyBodyRejected", func(t *testing.T) {
		resp, body := postToken(t, server, url.Values{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, string(body))
	})
}

func TestKeysEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/keys")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var keys jwks.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&keys))
	require.Len(t, keys.Keys, 1)
	assert.Equal(t, "RSA", keys.Keys[0].Kty)
	assert.Equal(t, "sig", keys.Keys[0].Use)
	assert.Equal(t, "RS256", keys.Keys[0].Alg)
	assert.NotEmpty(t, keys.Keys[0].Kid)
	assert.NotEmpty(t, keys.Keys[0].N)
	assert.Equal(t, "AQAB", keys.Keys[0].E)
}

func TestUserInfoEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("ValidBearerToken", func(t *testing.T) {
		code := authorize(t, server, "state5")
		resp, body := postToken(t, server, tokenForm(code))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var tokenResp idp.TokenResponse
		require.NoError(t, json.Unmarshal(body, &tokenResp))

		req, err := http.NewRequest(http.MethodGet, server.URL+"/userinfo", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)

		infoResp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer infoResp.Body.Close()

		require.Equal(t, http.StatusOK, infoResp.StatusCode)

		var profile idp.Profile
		require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&profile))
		assert.Equal(t, testUser, profile.Sub)
		assert.Equal(t, testUser, profile.Email)
	})

	t.Run("NoTokenRejected", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/userinfo")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"Unauthorized."}`, string(body))
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/userinfo", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not.a.jwt")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
