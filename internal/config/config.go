// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables, in that precedence order
// (env highest).
//
// Thread safety: Config is immutable after Load() and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	Library   LibraryConfig   `koanf:"library"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Journal   JournalConfig   `koanf:"journal"`
	Cluster   ClusterConfig   `koanf:"cluster"`
	Thumbs    ThumbsConfig    `koanf:"thumbs"`
	NATS      NATSConfig      `koanf:"nats"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	WebSocket WebSocketConfig `koanf:"websocket"`
}

// LibraryConfig controls scanning and watching of photo library roots.
//
// Environment Variables:
//   - LIBRARY_ROOTS: comma-separated list of directories to index
//   - LIBRARY_WORKERS: extraction worker pool size (0 = NumCPU)
//   - LIBRARY_DEBOUNCE_WINDOW: watcher event coalescing window (default 300ms)
//   - LIBRARY_WATCH_ENABLED: enable filesystem watching (default true)
//   - LIBRARY_RESCAN_ON_START: force a full rescan at startup (default false)
//   - LIBRARY_EXTRACT_RATE: max extractions per second, 0 = unlimited
type LibraryConfig struct {
	Roots          []string      `koanf:"roots"`
	Workers        int           `koanf:"workers"`         // 0 = runtime.NumCPU()
	DebounceWindow time.Duration `koanf:"debounce_window"` // also the rename-pairing window
	WatchEnabled   bool          `koanf:"watch_enabled"`
	RescanOnStart  bool          `koanf:"rescan_on_start"`
	ExtractRate    int           `koanf:"extract_rate"` // extractions/sec, 0 = unlimited
}

// CatalogConfig holds DuckDB catalog settings.
type CatalogConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // 0 = use NumCPU
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // DuckDB default true
	SkipIndexes            bool   `koanf:"skip_indexes"`             // fast test setup
}

// JournalConfig holds the Badger event journal settings. The journal records
// watcher events until they are applied so an interrupted session can be
// detected at startup.
type JournalConfig struct {
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// ClusterConfig controls the map clustering service.
type ClusterConfig struct {
	CellSizePx   int           `koanf:"cell_size_px"` // cluster cell edge in screen pixels
	MinZoom      int           `koanf:"min_zoom"`
	MaxZoom      int           `koanf:"max_zoom"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	CacheSize    int           `koanf:"cache_size"` // max cached responses
}

// ThumbsConfig controls thumbnail rendering.
type ThumbsConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Path             string        `koanf:"path"`
	MaxDim           int           `koanf:"max_dim"` // longest edge in pixels
	Workers          int           `koanf:"workers"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"` // consecutive failures before the breaker opens
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// NATSConfig holds optional NATS progress mirroring settings. Only used when
// the binary is built with the nats tag.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	SubjectPrefix  string `koanf:"subject_prefix"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// APIConfig holds API request budgets. QueryTimeout bounds handler work;
// a caller may lower it per request with timeout_ms but never raise it.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	RateLimitRPS    int           `koanf:"rate_limit_rps"`
	RateLimitBurst  int           `koanf:"rate_limit_burst"`
}

// SecurityConfig holds authentication and login throttling settings.
//
// AuthMode selects the mechanism: "none" (default, trusted LAN), "basic"
// (bcrypt-hashed admin password), or "jwt" (basic login issues a bearer
// token for subsequent requests). The rate limit fields bound login
// attempts per client IP; general API limits live under api.*.
// ProtectReads extends the auth requirement from mutating endpoints to
// read endpoints.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"` // bcrypt hash, not plaintext
	ProtectReads      bool          `koanf:"protect_reads"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// WebSocketConfig holds progress-broadcast hub settings.
type WebSocketConfig struct {
	Enabled        bool          `koanf:"enabled"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	MaxConnections int           `koanf:"max_connections"`
}

// Load loads configuration from defaults, an optional config file, and
// environment variables.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateCluster(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLibrary() error {
	for _, root := range c.Library.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("LIBRARY_ROOTS entries must be absolute paths, got %q", root)
		}
	}
	if c.Library.Workers < 0 {
		return fmt.Errorf("LIBRARY_WORKERS must be >= 0, got %d", c.Library.Workers)
	}
	if c.Library.DebounceWindow < 0 {
		return fmt.Errorf("LIBRARY_DEBOUNCE_WINDOW must be >= 0, got %s", c.Library.DebounceWindow)
	}
	if c.Library.ExtractRate < 0 {
		return fmt.Errorf("LIBRARY_EXTRACT_RATE must be >= 0, got %d", c.Library.ExtractRate)
	}
	return nil
}

func (c *Config) validateCluster() error {
	if c.Cluster.CellSizePx <= 0 {
		return fmt.Errorf("CLUSTER_CELL_SIZE_PX must be > 0, got %d", c.Cluster.CellSizePx)
	}
	if c.Cluster.MinZoom < 0 || c.Cluster.MaxZoom > 30 || c.Cluster.MinZoom > c.Cluster.MaxZoom {
		return fmt.Errorf("invalid cluster zoom range [%d, %d]", c.Cluster.MinZoom, c.Cluster.MaxZoom)
	}
	if c.Cluster.QueryTimeout <= 0 {
		return fmt.Errorf("CLUSTER_QUERY_TIMEOUT must be > 0, got %s", c.Cluster.QueryTimeout)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
		return nil
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging, or production, got %q", c.Server.Environment)
	}
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
		return nil
	case "basic", "jwt":
	default:
		return fmt.Errorf("AUTH_MODE must be none, basic, or jwt, got %q", c.Security.AuthMode)
	}

	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when AUTH_MODE=%s", c.Security.AuthMode)
	}
	if !strings.HasPrefix(c.Security.AdminPassword, "$2") {
		return fmt.Errorf("ADMIN_PASSWORD must be a bcrypt hash, not plaintext")
	}
	if c.Security.AuthMode == "jwt" {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be trace, debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
