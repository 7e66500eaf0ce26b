// Package api exposes the identity provider over HTTP: the authorize,
// token, keys and userinfo endpoints the federation broker calls.
package api

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/idplab/mockidp/pkg/idp"
)

// loginPage is the simulated login interstitial returned by /authorize.
// A real IdP would authenticate the user here; this fixture only carries
// the broker callback URL forward.
var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Mock IdP Login</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 600px; margin: 80px auto; padding: 20px; }
        .card { border: 1px solid #ddd; border-radius: 8px; padding: 20px; }
        a.button { display: inline-block; padding: 10px 24px; background: #1662dd; color: #fff; border-radius: 4px; text-decoration: none; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Mock Identity Provider</h1>
        <p>Simulated login page. Continue to send the authorization code back to the broker.</p>
        <a class="button" href="{{.RedirectURL}}">Login</a>
    </div>
</body>
</html>
`))

// ErrorResponse is the JSON error body for protocol failures
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handle implements the HTTP handlers for the identity provider endpoints
type Handle struct {
	service *idp.Service
}

// NewHandle creates the endpoint handlers around an idp.Service
func NewHandle(service *idp.Service) *Handle {
	return &Handle{service: service}
}

// Routes mounts the broker-facing endpoints on the router
func Routes(r chi.Router, h *Handle) {
	r.Get("/authorize", h.Authorize)
	r.Post("/token", h.Token)
	r.Get("/keys", h.Keys)
	r.Get("/userinfo", h.UserInfo)
}

// Authorize handles GET /authorize. It issues an authorization code bound
// to the broker-generated state and renders the login page whose continue
// link redirects back to the broker callback.
func (h *Handle) Authorize(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	redirectURI := r.URL.Query().Get("redirect_uri")

	redirectURL, err := h.service.Authorize(state, redirectURI)
	if err != nil {
		var missing idp.ErrMissingParameter
		if errors.As(err, &missing) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: missing.Error()})
			return
		}
		slog.Error("Authorize failed", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPage.Execute(w, map[string]string{"RedirectURL": redirectURL}); err != nil {
		slog.Error("Failed to render login page", "err", err)
	}
}

// Token handles POST /token. The broker calls this backchannel endpoint
// with form-encoded parameters to exchange the authorization code for
// tokens.
func (h *Handle) Token(w http.ResponseWriter, r *http.Request) {
	req := idp.TokenRequest{
		Code:         r.PostFormValue("code"),
		GrantType:    r.PostFormValue("grant_type"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
	}

	resp, err := h.service.ExchangeCode(r.Context(), req)
	if err != nil {
		if !errors.Is(err, idp.ErrUnauthorized) {
			slog.Error("Token exchange failed", "err", err)
		}
		unauthorized(w, r)
		return
	}

	render.JSON(w, r, resp)
}

// Keys handles GET /keys, the public JWKS endpoint
func (h *Handle) Keys(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Keys())
}

// UserInfo handles GET /userinfo. It validates the bearer access token
// and returns the fixed test-user profile.
func (h *Handle) UserInfo(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.UserInfo(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		if !errors.Is(err, idp.ErrUnauthorized) {
			slog.Error("Userinfo failed", "err", err)
		}
		unauthorized(w, r)
		return
	}

	render.JSON(w, r, profile)
}

// unauthorized writes the uniform 401 body. The trailing period matches
// the error string the broker integration was built against.
func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Error: "Unauthorized."})
}
