// Package config handles configuration loading for the access point
// node.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive
// values like database credentials and gateway API keys to be injected
// at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, base path)
//   - storage: Database connection (MongoDB URI, database name)
//   - network: Discovery settings (SML zone, DNS server, timeouts)
//   - transport: AS4 gateway settings (URL, API key, timeout)
//   - dispatch: Webhook/integration timeouts and cron intervals
//
// # Example Configuration
//
//	server:
//	  port: 8080
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: peppol
//
//	network:
//	  smlZone: edelivery.tech.ec.europa.eu
//
//	transport:
//	  gatewayUrl: https://as4.example.com/send
//	  apiKey: ${GATEWAY_API_KEY}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Network   NetworkConfig   `yaml:"network"`
	Transport TransportConfig `yaml:"transport"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// NetworkConfig holds discovery settings
type NetworkConfig struct {
	// SMLZone is the DNS zone queried for publisher discovery
	SMLZone string `yaml:"smlZone"`
	// DNSServer overrides the system resolver (host:port)
	DNSServer  string        `yaml:"dnsServer"`
	DNSTimeout time.Duration `yaml:"dnsTimeout"`
	SMPTimeout time.Duration `yaml:"smpTimeout"`
}

// TransportConfig holds AS4 gateway settings
type TransportConfig struct {
	GatewayURL string        `yaml:"gatewayUrl"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DispatchConfig holds event dispatch settings
type DispatchConfig struct {
	WebhookTimeout     time.Duration `yaml:"webhookTimeout"`
	IntegrationTimeout time.Duration `yaml:"integrationTimeout"`
	CronShort          time.Duration `yaml:"cronShort"`
	CronMedium         time.Duration `yaml:"cronMedium"`
	CronLong           time.Duration `yaml:"cronLong"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "peppol"
	}
	if c.Network.SMLZone == "" {
		c.Network.SMLZone = "edelivery.tech.ec.europa.eu"
	}
	if c.Network.DNSTimeout == 0 {
		c.Network.DNSTimeout = 10 * time.Second
	}
	if c.Network.SMPTimeout == 0 {
		c.Network.SMPTimeout = 30 * time.Second
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 60 * time.Second
	}
	if c.Dispatch.WebhookTimeout == 0 {
		c.Dispatch.WebhookTimeout = 10 * time.Second
	}
	if c.Dispatch.IntegrationTimeout == 0 {
		c.Dispatch.IntegrationTimeout = 30 * time.Second
	}
	if c.Dispatch.CronShort == 0 {
		c.Dispatch.CronShort = 5 * time.Minute
	}
	if c.Dispatch.CronMedium == 0 {
		c.Dispatch.CronMedium = 6 * time.Hour
	}
	if c.Dispatch.CronLong == 0 {
		c.Dispatch.CronLong = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("storage.mongodb.uri is required")
	}
	if c.Transport.GatewayURL == "" {
		return fmt.Errorf("transport.gatewayUrl is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got '%s'", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	return nil
}
