// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/photarium/config.yaml",
	"/etc/photarium/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first and are overridden by the config file and then environment variables.
func defaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Roots:          nil,
			Workers:        0, // 0 = runtime.NumCPU()
			DebounceWindow: 300 * time.Millisecond,
			WatchEnabled:   true,
			RescanOnStart:  false,
			ExtractRate:    0, // unlimited
		},
		Catalog: CatalogConfig{
			Path:                   "/data/photarium.duckdb",
			MaxMemory:              "1GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		Journal: JournalConfig{
			Path:       "/data/journal",
			SyncWrites: false,
			GCInterval: 5 * time.Minute,
		},
		Cluster: ClusterConfig{
			CellSizePx:   60,
			MinZoom:      0,
			MaxZoom:      22,
			QueryTimeout: 10 * time.Second,
			CacheTTL:     time.Minute,
			CacheSize:    512,
		},
		Thumbs: ThumbsConfig{
			Enabled:          true,
			Path:             "/data/thumbs",
			MaxDim:           320,
			Workers:          2,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			SubjectPrefix:  "photarium",
		},
		Server: ServerConfig{
			Port:        8087,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			QueryTimeout:    5 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Security: SecurityConfig{
			AuthMode:          "none",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			ProtectReads:      false,
			RateLimitReqs:     5, // login attempts per window per IP
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			MaxConnections: 64,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file
//  3. Environment variables: highest priority
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// LIBRARY_ROOTS -> library.roots, HTTP_PORT -> server.port, etc.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, trying the env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"library.roots",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices; YAML values are already slices and pass through.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - LIBRARY_ROOTS -> library.roots
//   - DUCKDB_PATH -> catalog.path
//   - HTTP_PORT -> server.port
//   - AUTH_MODE -> security.auth_mode
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Library
		"library_roots":           "library.roots",
		"library_workers":         "library.workers",
		"library_debounce_window": "library.debounce_window",
		"library_watch_enabled":   "library.watch_enabled",
		"library_rescan_on_start": "library.rescan_on_start",
		"library_extract_rate":    "library.extract_rate",

		// Catalog
		"duckdb_path":                     "catalog.path",
		"duckdb_max_memory":               "catalog.max_memory",
		"duckdb_threads":                  "catalog.threads",
		"duckdb_preserve_insertion_order": "catalog.preserve_insertion_order",
		"duckdb_skip_indexes":             "catalog.skip_indexes",

		// Journal
		"journal_path":        "journal.path",
		"journal_sync_writes": "journal.sync_writes",
		"journal_gc_interval": "journal.gc_interval",

		// Cluster
		"cluster_cell_size_px":  "cluster.cell_size_px",
		"cluster_min_zoom":      "cluster.min_zoom",
		"cluster_max_zoom":      "cluster.max_zoom",
		"cluster_query_timeout": "cluster.query_timeout",
		"cluster_cache_ttl":     "cluster.cache_ttl",
		"cluster_cache_size":    "cluster.cache_size",

		// Thumbnails
		"thumbs_enabled":           "thumbs.enabled",
		"thumbs_path":              "thumbs.path",
		"thumbs_max_dim":           "thumbs.max_dim",
		"thumbs_workers":           "thumbs.workers",
		"thumbs_breaker_threshold": "thumbs.breaker_threshold",
		"thumbs_breaker_cooldown":  "thumbs.breaker_cooldown",

		// NATS
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_subject_prefix": "nats.subject_prefix",

		// Server
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"api_query_timeout":     "api.query_timeout",
		"api_rate_limit_rps":    "api.rate_limit_rps",
		"api_rate_limit_burst":  "api.rate_limit_burst",

		// Security
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"protect_reads":       "security.protect_reads",
		"rate_limit_reqs":     "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"rate_limit_disabled": "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// WebSocket
		"ws_enabled":         "websocket.enabled",
		"ws_write_timeout":   "websocket.write_timeout",
		"ws_ping_interval":   "websocket.ping_interval",
		"ws_max_connections": "websocket.max_connections",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed into paths; a stray
	// HOSTNAME or PATH must not leak into the config tree.
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when swapping configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
