package transmission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/mqtt"
	"github.com/viper-hass/viper-hass/internal/status"
)

// MQTTTransmitter publishes vehicle snapshots via MQTT using Home Assistant
// discovery. Every tracked vehicle becomes one device with binary sensors
// for the status flags, a battery voltage sensor, a last-updated sensor, a
// GPS device tracker and command buttons.
type MQTTTransmitter struct {
	client          *mqtt.Client
	discoveryPrefix string
	registry        *coordinator.Registry
	logger          *logrus.Logger
	published       map[string]bool // vehicles with discovery configs out
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration.
type HADiscoveryConfig struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	PayloadPress      string   `json:"payload_press,omitempty"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Device            HADevice `json:"device"`
	AvailabilityTopic string   `json:"availability_topic"`
	Icon              string   `json:"icon,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	JSONAttrsTopic    string   `json:"json_attributes_topic,omitempty"`
	SourceType        string   `json:"source_type,omitempty"`
}

// HADevice represents the device information for Home Assistant.
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer"`
}

// binarySensorConfig describes one status flag exposed as a binary sensor.
type binarySensorConfig struct {
	Key         string // JSON key in the state payload
	Name        string
	DeviceClass string
	Icon        string
}

var binarySensors = []binarySensorConfig{
	{Key: "doors_open", Name: "Doors Open", DeviceClass: "door"},
	{Key: "doors_locked", Name: "Doors Locked", Icon: "mdi:car-door-lock"},
	{Key: "ignition_on", Name: "Ignition", DeviceClass: "running"},
	{Key: "trunk_open", Name: "Trunk Open", DeviceClass: "opening"},
	{Key: "hood_open", Name: "Hood Open", DeviceClass: "opening"},
	{Key: "remote_starter_active", Name: "Remote Starter", DeviceClass: "running", Icon: "mdi:car-key"},
	{Key: "security_system_armed", Name: "Security System", Icon: "mdi:shield-car"},
	{Key: "panic_on", Name: "Panic", DeviceClass: "safety"},
	{Key: "valet_on", Name: "Valet Mode", Icon: "mdi:account-tie-hat"},
}

// buttonConfig describes one command button.
type buttonConfig struct {
	Key     string // also the command payload
	Name    string
	Icon    string
	Command string
}

var buttons = []buttonConfig{
	{Key: "lock", Name: "Lock", Icon: "mdi:car-door-lock"},
	{Key: "unlock", Name: "Unlock", Icon: "mdi:car-door-lock-open"},
	{Key: "remote_start", Name: "Remote Start", Icon: "mdi:car-key"},
	{Key: "refresh", Name: "Refresh Status", Icon: "mdi:refresh"},
}

// NewMQTTTransmitter creates a new MQTT transmitter.
func NewMQTTTransmitter(client *mqtt.Client, discoveryPrefix string, registry *coordinator.Registry, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		registry:        registry,
		logger:          logger,
		published:       make(map[string]bool),
	}
}

// IsConnected reports broker connectivity.
func (t *MQTTTransmitter) IsConnected() bool {
	return t.client.IsConnected()
}

// Transmit publishes one snapshot update: discovery configs (once per
// vehicle), per-vehicle state and account availability.
func (t *MQTTTransmitter) Transmit(update *coordinator.Update) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	coord, ok := t.registry.Get(update.Account)
	if !ok {
		return fmt.Errorf("no coordinator registered for account %s", update.Account)
	}

	for vehicleID, vehicleStatus := range update.Snapshot {
		if vehicleStatus == nil {
			continue
		}

		if err := t.publishDiscoveryConfigs(update.Account, coord, vehicleID); err != nil {
			// Log but don't block state transmission
			t.logger.WithError(err).Error("Failed to publish Home Assistant discovery configs")
		}

		if err := t.publishState(update, vehicleID, vehicleStatus); err != nil {
			return err
		}
	}

	if err := t.client.PublishAvailability(update.Account, true); err != nil {
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	t.logger.WithField("account", update.Account).Debug("Snapshot transmitted")
	return nil
}

// statePayload is the per-vehicle state document. The embedded status
// contributes its fields flat; absent fields are omitted so Home Assistant
// keeps them unknown instead of defaulting.
type statePayload struct {
	*status.VehicleStatus
	State       string `json:"state"`
	LastUpdated string `json:"last_updated,omitempty"`
	GPSAccuracy int    `json:"gps_accuracy,omitempty"`
}

func (t *MQTTTransmitter) publishState(update *coordinator.Update, vehicleID string, vehicleStatus *status.VehicleStatus) error {
	payload := statePayload{
		VehicleStatus: vehicleStatus,
		State:         deriveState(vehicleStatus),
	}
	if !update.LastUpdated.IsZero() {
		payload.LastUpdated = update.LastUpdated.Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to build state payload: %w", err)
	}

	topic := mqtt.StateTopic(update.Account, vehicleID)
	if err := t.client.Publish(topic, body, true); err != nil {
		return fmt.Errorf("failed to publish vehicle state to %s: %w", topic, err)
	}

	t.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"vehicle": vehicleID,
	}).Debug("Published vehicle state")
	return nil
}

// deriveState condenses the status flags into one headline state for the
// device tracker entity.
func deriveState(s *status.VehicleStatus) string {
	switch {
	case s.RemoteStarterActive != nil && *s.RemoteStarterActive:
		return "remote_running"
	case s.IgnitionOn != nil && *s.IgnitionOn:
		return "running"
	case s.SecuritySystemArmed != nil && *s.SecuritySystemArmed:
		return "armed"
	default:
		return "parked"
	}
}

func (t *MQTTTransmitter) publishDiscoveryConfigs(account string, coord *coordinator.Coordinator, vehicleID string) error {
	key := account + "/" + vehicleID
	if t.published[key] {
		return nil
	}

	device := t.deviceInfo(account, coord, vehicleID)
	stateTopic := mqtt.StateTopic(account, vehicleID)
	availTopic := mqtt.AvailabilityTopic(account)

	var configs []struct {
		entityType string
		entityID   string
		config     HADiscoveryConfig
	}

	add := func(entityType, entityID string, cfg HADiscoveryConfig) {
		cfg.UniqueID = fmt.Sprintf("viper_hass_%s_%s_%s", account, vehicleID, entityID)
		cfg.Device = device
		cfg.AvailabilityTopic = availTopic
		configs = append(configs, struct {
			entityType string
			entityID   string
			config     HADiscoveryConfig
		}{entityType, entityID, cfg})
	}

	for _, bs := range binarySensors {
		add("binary_sensor", bs.Key, HADiscoveryConfig{
			Name:          bs.Name,
			StateTopic:    stateTopic,
			ValueTemplate: boolTemplate(bs.Key),
			DeviceClass:   bs.DeviceClass,
			Icon:          bs.Icon,
		})
	}

	add("sensor", "battery_voltage", HADiscoveryConfig{
		Name:              "Battery Voltage",
		StateTopic:        stateTopic,
		ValueTemplate:     optionalTemplate("battery_voltage"),
		DeviceClass:       "voltage",
		StateClass:        "measurement",
		UnitOfMeasurement: "V",
	})

	add("sensor", "last_updated", HADiscoveryConfig{
		Name:          "Last Updated",
		StateTopic:    stateTopic,
		ValueTemplate: optionalTemplate("last_updated"),
		DeviceClass:   "timestamp",
		Icon:          "mdi:clock-outline",
	})

	add("device_tracker", "location", HADiscoveryConfig{
		Name:           "Location",
		StateTopic:     stateTopic,
		ValueTemplate:  "{{ value_json.state }}",
		JSONAttrsTopic: stateTopic,
		SourceType:     "gps",
		Icon:           "mdi:car",
	})

	commandTopic := mqtt.CommandTopic(account, vehicleID)
	for _, b := range buttons {
		add("button", b.Key, HADiscoveryConfig{
			Name:         b.Name,
			CommandTopic: commandTopic,
			PayloadPress: b.Key,
			Icon:         b.Icon,
		})
	}

	for _, c := range configs {
		payload, err := json.Marshal(c.config)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config for %s: %w", c.entityID, err)
		}
		topic := mqtt.DiscoveryTopic(t.discoveryPrefix, c.entityType, account, vehicleID, c.entityID)
		if err := t.client.Publish(topic, payload, true); err != nil {
			return fmt.Errorf("failed to publish discovery config to %s: %w", topic, err)
		}
	}

	t.published[key] = true
	t.logger.WithFields(logrus.Fields{
		"vehicle":  vehicleID,
		"entities": len(configs),
	}).Info("Published Home Assistant discovery configs")
	return nil
}

func (t *MQTTTransmitter) deviceInfo(account string, coord *coordinator.Coordinator, vehicleID string) HADevice {
	name := "Vehicle " + vehicleID
	model := ""
	if v, ok := coord.Vehicle(vehicleID); ok {
		name = v.Name
		model = v.ModelString()
	}
	return HADevice{
		Identifiers:  []string{fmt.Sprintf("viper_hass_%s_%s", account, vehicleID)},
		Name:         name,
		Model:        model,
		Manufacturer: "Viper SmartStart",
	}
}

// boolTemplate renders a status flag as ON/OFF, and None (unknown) while
// the field is absent from the payload.
func boolTemplate(key string) string {
	return fmt.Sprintf(
		"{%% if value_json.%s is defined %%}{{ 'ON' if value_json.%s else 'OFF' }}{%% else %%}None{%% endif %%}",
		key, key)
}

// optionalTemplate renders a value field, and None while absent.
func optionalTemplate(key string) string {
	return fmt.Sprintf(
		"{%% if value_json.%s is defined %%}{{ value_json.%s }}{%% else %%}None{%% endif %%}",
		key, key)
}
