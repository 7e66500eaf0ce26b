// Package brokersync keeps the federation broker's registered IdP
// endpoints consistent with this service's own public URL. The sync runs
// once at startup, is idempotent (PUT only when the registered endpoints
// differ) and is best-effort: a failure is logged by the caller and never
// blocks the IdP itself from serving.
package brokersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// Config holds the broker admin API settings used by the synchronizer
type Config struct {
	// BrokerDomainURL is the broker organization's base URL
	BrokerDomainURL string

	// APIKey authenticates against the broker admin API (SSWS scheme)
	APIKey string

	// IdpID is the broker-side identifier of this IdP's registration
	IdpID string

	// Issuer is this service's public base URL the endpoints derive from
	Issuer string

	// UserinfoEnabled controls whether the userinfo endpoint is
	// advertised to the broker
	UserinfoEnabled bool
}

// Service synchronizes the broker's IdP registration
type Service struct {
	cfg        Config
	httpClient *http.Client
}

// Option is a function that configures a Service
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for broker API calls
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// NewService creates a broker settings synchronizer
func NewService(cfg Config, opts ...Option) *Service {
	service := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// DesiredEndpoints returns the endpoint set this service wants registered
func (s *Service) DesiredEndpoints() EndpointSet {
	return EndpointsForIssuer(s.cfg.Issuer, s.cfg.UserinfoEnabled)
}

// Sync fetches the broker's current IdP registration and, when the
// registered endpoints differ from the desired set, writes the full
// document back with the endpoints and issuer URL replaced. Unknown
// fields of the registration are preserved untouched.
func (s *Service) Sync(ctx context.Context) error {
	idpURL := fmt.Sprintf("%s/api/v1/idps/%s", strings.TrimSuffix(s.cfg.BrokerDomainURL, "/"), s.cfg.IdpID)

	doc, err := s.fetchRegistration(ctx, idpURL)
	if err != nil {
		return err
	}

	protocol, ok := doc["protocol"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("broker IdP registration has no protocol section")
	}

	desired := s.DesiredEndpoints()
	desiredJSON, err := normalize(desired)
	if err != nil {
		return err
	}

	if reflect.DeepEqual(protocol["endpoints"], desiredJSON) {
		slog.Info("Broker IdP settings up to date", "issuer", s.cfg.Issuer)
		return nil
	}

	protocol["endpoints"] = desiredJSON
	if issuer, ok := protocol["issuer"].(map[string]interface{}); ok {
		issuer["url"] = s.cfg.Issuer
	} else {
		protocol["issuer"] = map[string]interface{}{"url": s.cfg.Issuer}
	}

	if err := s.putRegistration(ctx, idpURL, doc); err != nil {
		return err
	}

	slog.Info("Broker IdP endpoints updated", "issuer", s.cfg.Issuer)
	return nil
}

func (s *Service) fetchRegistration(ctx context.Context, idpURL string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idpURL, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch broker IdP registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("broker IdP registration fetch returned status %d", resp.StatusCode)
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode broker IdP registration: %w", err)
	}
	return doc, nil
}

func (s *Service) putRegistration(ctx context.Context, idpURL string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, idpURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update broker IdP registration: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker IdP registration update returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "SSWS "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// normalize round-trips v through JSON so it compares cleanly against a
// decoded registration document.
func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
