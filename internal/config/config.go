package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration options for the viper-hass daemon.
type Config struct {
	// MQTT configuration
	MQTTUrl         string `mapstructure:"mqtt_url" json:"mqtt_url"`                   // MQTT URL (supports both WebSocket and standard MQTT)
	MQTTInsecureTLS bool   `mapstructure:"mqtt_insecure_tls" json:"mqtt_insecure_tls"` // Skip broker certificate verification (wss/mqtts)
	DiscoveryPrefix string `mapstructure:"discovery_prefix" json:"discovery_prefix"`   // Home Assistant discovery prefix

	// HTTP control surface
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"` // listen address, empty = disabled

	// Application configuration
	Verbose bool `mapstructure:"verbose" json:"verbose"` // Enable verbose logging

	// API configuration
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url"` // SmartStart cloud base URL
	APITimeout int    `mapstructure:"api_timeout" json:"api_timeout"`   // API request timeout in seconds

	// Tracked accounts
	Accounts []Account `mapstructure:"accounts" json:"accounts"`
}

// Account configures one SmartStart cloud account and the vehicles tracked
// on it.
type Account struct {
	ID       string   `mapstructure:"id" json:"id"` // registry key, defaults to username
	Username string   `mapstructure:"username" json:"username"`
	Password string   `mapstructure:"password" json:"password"`
	Vehicles []string `mapstructure:"vehicles" json:"vehicles"` // tracked device ids

	// Automatic polling interval in seconds, 0 = disabled (manual
	// refresh only)
	RefreshInterval int `mapstructure:"refresh_interval" json:"refresh_interval"`
}

// GetDefaultConfig returns a configuration with sensible defaults.
func GetDefaultConfig() *Config {
	return &Config{
		DiscoveryPrefix: "homeassistant",
		HTTPAddr:        ":8099",
		APITimeout:      int(APITimeout.Seconds()),
	}
}

// Validate checks if the configuration is valid and fills derived defaults.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("account %d: username and password are required", i)
		}
		if a.ID == "" {
			a.ID = a.Username
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
		if a.RefreshInterval < 0 {
			a.RefreshInterval = DefaultRefreshInterval
		}
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	if c.APITimeout <= 0 {
		c.APITimeout = int(APITimeout.Seconds())
	}

	return nil
}

// HasMQTT returns true if MQTT is configured.
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}

// HasHTTP returns true if the HTTP control surface is enabled.
func (c *Config) HasHTTP() bool {
	return c.HTTPAddr != ""
}

// GetAPITimeout returns the API timeout as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	return time.Duration(c.APITimeout) * time.Second
}

// GetRefreshInterval returns the account's normal polling interval; zero
// means automatic polling is disabled.
func (a Account) GetRefreshInterval() time.Duration {
	return time.Duration(a.RefreshInterval) * time.Second
}
