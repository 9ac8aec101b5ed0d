// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server reads from the environment.
//
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET come from a Google Cloud
// OAuth 2.0 client registration. Leaving them unset doesn't stop the server
// from starting, but the login flow fails on the first call to Google.
//
// SESSION_SECRET signs the session cookie JWT. Generate one with:
//
//	SESSION_SECRET=$(openssl rand -hex 32)
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/medbox.db"`

	// BaseURL is the externally reachable address of this server. The OAuth
	// callback URL is derived from it and must match the redirect URI
	// registered with Google exactly.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	SessionSecret      string `env:"SESSION_SECRET"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	TemplateDir string `env:"TEMPLATE_DIR" envDefault:"web/templates"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"web/static"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// CallbackURL is the redirect URI sent to Google on both legs of the flow.
// The same value must be used when building the authorization request and
// when exchanging the code, or Google rejects the exchange.
func (c Config) CallbackURL() string {
	return c.BaseURL + "/login/callback"
}
