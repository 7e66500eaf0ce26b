package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/idplab/mockidp/pkg/brokersync"
	"github.com/idplab/mockidp/pkg/idp"
	idpapi "github.com/idplab/mockidp/pkg/idp/api"
	"github.com/idplab/mockidp/pkg/jwks"
	"github.com/idplab/mockidp/pkg/wellknown"
)

type Config struct {
	// This service's public base URL, used as the token issuer
	IssuerBaseURL string `env:"ISSUER_BASE_URL" env-default:"http://localhost:4000"`

	// Broker organization and credentials
	BrokerDomainURL string `env:"BROKER_DOMAIN_URL" env-default:""`
	BrokerClientID  string `env:"BROKER_CLIENT_ID" env-default:""`

	// Credentials the broker presents at the token endpoint
	ClientID     string `env:"IDP_CLIENT_ID" env-default:""`
	ClientSecret string `env:"IDP_CLIENT_SECRET" env-default:""`

	// The single simulated identity
	TestUser string `env:"IDP_TEST_USER" env-default:"idp.test.user@example.com"`

	// Whether the userinfo endpoint is advertised to the broker
	UserinfoFlow bool `env:"USERINFO_FLOW" env-default:"false"`

	// JWKS modulus encoding: "base64" (reference broker) or "base64url"
	// (RFC 7518)
	ModulusEncoding string `env:"JWKS_MODULUS_ENCODING" env-default:"base64"`

	// Broker admin API access, used only by the settings synchronizer.
	// Sync is skipped when either value is empty.
	BrokerAPIKey string `env:"BROKER_API_KEY" env-default:""`
	BrokerIdpID  string `env:"BROKER_IDP_ID" env-default:""`

	AppConfig app.AppConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load .env if present, then the environment
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	modulusEncoding, err := jwks.ParseModulusEncoding(config.ModulusEncoding)
	if err != nil {
		slog.Error("Invalid JWKS modulus encoding", "err", err)
		os.Exit(1)
	}

	// Fresh signing keypair every process start; generation failure is
	// fatal since nothing can be signed or verified without it.
	keypair, err := jwks.GenerateSigningKeypair(modulusEncoding)
	if err != nil {
		slog.Error("Failed to generate signing keypair", "err", err)
		os.Exit(1)
	}
	slog.Info("Generated signing keypair", "kid", keypair.Kid, "modulus_encoding", string(modulusEncoding))

	service, err := idp.NewService(idp.Config{
		Issuer:          config.IssuerBaseURL,
		BrokerDomainURL: config.BrokerDomainURL,
		TestUser:        config.TestUser,
		ClientID:        config.ClientID,
		ClientSecret:    config.ClientSecret,
		BrokerClientID:  config.BrokerClientID,
	}, keypair)
	if err != nil {
		slog.Error("Failed to create IdP service", "err", err)
		os.Exit(1)
	}

	// Best-effort: push this service's endpoint set to the broker. The
	// IdP's own endpoints work regardless, so a sync failure is logged
	// and startup continues.
	syncBrokerSettings(&config)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	idpapi.Routes(server.R, idpapi.NewHandle(service))

	wellKnownHandler := wellknown.NewHandler(wellknown.Config{
		Issuer:          config.IssuerBaseURL,
		UserinfoEnabled: config.UserinfoFlow,
	})
	server.R.Get("/.well-known/openid-configuration", wellKnownHandler.OpenIDConfiguration)

	slog.Info("Mock OIDC IdP ready",
		"issuer", config.IssuerBaseURL,
		"expected_redirect_uri", service.ExpectedRedirectURI(),
		"userinfo_flow", config.UserinfoFlow)

	server.Run()
}

func syncBrokerSettings(config *Config) {
	if config.BrokerAPIKey == "" || config.BrokerIdpID == "" {
		slog.Info("Broker settings sync skipped (no API key or IdP id configured)")
		return
	}

	sync := brokersync.NewService(brokersync.Config{
		BrokerDomainURL: config.BrokerDomainURL,
		APIKey:          config.BrokerAPIKey,
		IdpID:           config.BrokerIdpID,
		Issuer:          config.IssuerBaseURL,
		UserinfoEnabled: config.UserinfoFlow,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sync.Sync(ctx); err != nil {
		slog.Warn("Broker settings sync failed; update the broker IdP configuration manually", "err", err)
	}
}
