package config

import "time"

// Central place for all application-wide timing constants and other
// defaults. Changing a value here immediately affects all components that
// import github.com/viper-hass/viper-hass/internal/config.

const (
	// Boosted polling while a remote start is being monitored
	BoostedInterval    = 60 * time.Second
	BoostedMaxDuration = 30 * time.Minute

	// Delay before refreshing after a successful command, giving the
	// vehicle backend time to reflect the new state
	ActionRefreshDelay = 10 * time.Second

	// Operation time-outs (to avoid blocking goroutines)
	APITimeout  = 10 * time.Second // SmartStart cloud call
	MQTTTimeout = 5 * time.Second  // MQTT publish

	// The cloud account has a yearly API call budget, so automatic
	// polling is off (0) unless explicitly configured
	DefaultRefreshInterval = 0
)
