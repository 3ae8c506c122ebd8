// Package config defines the application configuration, loaded from a single
// YAML file with ${ENV_VAR} expansion. Every section implements SetDefaults
// and Validate; Load applies them in that order.
package config

import (
	"fmt"
	"os"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Uploads  UploadsConfig  `yaml:"uploads,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Search   SearchConfig   `yaml:"search,omitempty"`
	Logger   LoggerConfig   `yaml:"logger,omitempty"`
}

// SetDefaults applies defaults to all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Store.SetDefaults()
	c.Uploads.SetDefaults()
	c.Database.SetDefaults()
	c.Search.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	return nil
}

// Default returns a fully defaulted configuration, used when no config file
// is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty"`

	// CORS configuration.
	CORS *CORSConfig `yaml:"cors,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty"`
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.CORS == nil {
		c.CORS = &CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-User-ID"},
		}
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig configures the persistence database.
type StoreConfig struct {
	// Path is the SQLite database file. Default: nestor.db
	Path string `yaml:"path,omitempty"`
}

// SetDefaults applies default values to StoreConfig.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "nestor.db"
	}
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// UploadsConfig configures where uploaded documents live. The retrieval index
// is built from this directory tree.
type UploadsConfig struct {
	// Dir is the root directory for uploaded documents.
	// Default: media/uploaded_docs
	Dir string `yaml:"dir,omitempty"`
}

// SetDefaults applies default values to UploadsConfig.
func (c *UploadsConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "media/uploaded_docs"
	}
}

// Validate checks the uploads configuration.
func (c *UploadsConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	return nil
}

// Database connection modes.
const (
	DatabaseModeSQLite = "sqlite"
	DatabaseModeURL    = "url"
)

// DatabaseConfig describes the process-default database connection used for
// schema inspection when a user has not registered their own. When Mode is
// empty the DATABASE_URL environment variable is consulted instead.
type DatabaseConfig struct {
	// Mode selects how the database is reached: "sqlite" (local file) or
	// "url" (connection string).
	Mode string `yaml:"mode,omitempty"`

	// SQLitePath is the database file path. Required when mode is "sqlite".
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// URL is the connection string. Required when mode is "url".
	URL string `yaml:"url,omitempty"`

	// DisplayName is a human-readable label for the connection.
	DisplayName string `yaml:"display_name,omitempty"`
}

// SetDefaults applies default values to DatabaseConfig.
func (c *DatabaseConfig) SetDefaults() {
	if c.Mode == DatabaseModeURL && c.URL == "" {
		c.URL = os.Getenv("DATABASE_URL")
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Mode {
	case "":
		// Unset: resolution falls back to DATABASE_URL at request time.
	case DatabaseModeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite mode requires sqlite_path")
		}
	case DatabaseModeURL:
		if c.URL == "" {
			return fmt.Errorf("url mode requires url (or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid mode %q (valid: sqlite, url)", c.Mode)
	}
	return nil
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	// BaseURL of the search API. Default: https://api.tavily.com
	BaseURL string `yaml:"base_url,omitempty"`

	// MaxResults per query. Default: 5
	MaxResults int `yaml:"max_results,omitempty"`

	// Depth of the search ("basic" or "advanced"). Default: basic
	Depth string `yaml:"depth,omitempty"`
}

// SetDefaults applies default values to SearchConfig.
func (c *SearchConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.tavily.com"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.Depth == "" {
		c.Depth = "basic"
	}
}

// Validate checks the search configuration.
func (c *SearchConfig) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be positive")
	}
	if c.Depth != "basic" && c.Depth != "advanced" {
		return fmt.Errorf("invalid depth %q (valid: basic, advanced)", c.Depth)
	}
	return nil
}
