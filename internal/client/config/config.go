// Package config handles configuration for the command-line client.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the csvkeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - AccessToken: bearer token sent with every protected call.
//   - RequestTimeout: deadline applied to each call.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 30 * time.Second
}

// parseEnv reads CSVKEEPER_SERVER and CSVKEEPER_TOKEN.
func parseEnv(c *Config) {
	if v, ok := os.LookupEnv("CSVKEEPER_SERVER"); ok && v != "" {
		c.ServerEndpointAddr = v
	}
	if v, ok := os.LookupEnv("CSVKEEPER_TOKEN"); ok && v != "" {
		c.AccessToken = v
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
