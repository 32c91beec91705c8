package transmission

import "github.com/viper-hass/viper-hass/internal/coordinator"

// Transmitter defines the interface for publishing snapshot updates to a
// presentation surface.
type Transmitter interface {
	Transmit(update *coordinator.Update) error
	IsConnected() bool
}
