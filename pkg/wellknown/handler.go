package wellknown

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler provides the HTTP handler for the discovery endpoint
type Handler struct {
	config Config
}

// NewHandler creates a discovery endpoint handler
func NewHandler(config Config) *Handler {
	return &Handler{config: config}
}

// OpenIDConfiguration handles GET /.well-known/openid-configuration
func (h *Handler) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	metadata := NewOpenIDConfiguration(h.config)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		slog.Error("Failed to encode OpenID configuration", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
