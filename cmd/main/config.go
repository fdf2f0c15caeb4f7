package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	ServerAddr   string          `json:"server_addr"`
	LogLevel     string          `json:"log_level"`
	DataDir      string          `json:"data_dir"`
	DatabasePath string          `json:"database_path"`
	TemplateDir  string          `json:"template_dir"`
	DripFeed     *DripFeedConfig `json:"drip_feed_config"`
}

// DripFeedConfig holds settings for per-line response drip feeding, which
// slows rendered output down to one line per flush for destinations that want
// incremental delivery.
type DripFeedConfig struct {
	Enable         bool `json:"enable"`
	InitialDelayMs int  `json:"initial_delay_ms"`
	LineDelayMs    int  `json:"line_delay_ms"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:   ":7280",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/linetmpl.db",
		TemplateDir:  "./data/templates",
		DripFeed: &DripFeedConfig{
			Enable:         false,
			InitialDelayMs: 0,
			LineDelayMs:    100,
		},
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultServerConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
