// Package config loads client configuration from the environment.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config collects the endpoints and keys of the external services. The store
// and identity URLs point at a Firebase-style backend; the upload and maps
// settings are only needed by the commands that use them.
type Config struct {
	StoreURL           string `env:"PK_STORE_URL,required"`
	IdentityURL        string `env:"PK_IDENTITY_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	APIKey             string `env:"PK_API_KEY,required"`
	GeocodeURL         string `env:"PK_GEOCODE_URL" envDefault:"https://maps.googleapis.com"`
	MapsAPIKey         string `env:"PK_MAPS_API_KEY"`
	UploadURL          string `env:"PK_UPLOAD_URL"`
	HTTPTimeoutSeconds int    `env:"PK_HTTP_TIMEOUT_SECONDS" envDefault:"30"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.StoreURL = strings.TrimRight(cfg.StoreURL, "/")
	cfg.IdentityURL = strings.TrimRight(cfg.IdentityURL, "/")
	cfg.GeocodeURL = strings.TrimRight(cfg.GeocodeURL, "/")
	return cfg, cfg.Validate()
}

// HTTPTimeout is the per-request timeout for all remote calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate rejects values env tags cannot express.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.StoreURL, "http://") && !strings.HasPrefix(c.StoreURL, "https://") {
		return errors.New("PK_STORE_URL must be an http(s) URL")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("PK_HTTP_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
