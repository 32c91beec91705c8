package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/config"
)

// Client wraps the MQTT client with topic conventions for the bridge.
type Client struct {
	client mqtt.Client
	logger *logrus.Logger
}

// NewClient creates a new MQTT client with support for both WebSocket and
// standard MQTT protocols. Broker certificate verification stays on for
// wss/mqtts unless insecureTLS is set.
func NewClient(mqttURL, clientSuffix string, insecureTLS bool, logger *logrus.Logger) (*Client, error) {
	opts, err := newClientOptions(mqttURL, fmt.Sprintf("viper-hass-%s", clientSuffix), insecureTLS, logger)
	if err != nil {
		return nil, err
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		logger.Debug("MQTT reconnecting...")
	})

	firstConnect := true
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if firstConnect {
			logger.Debug("MQTT connected")
			firstConnect = false
		} else {
			logger.Info("MQTT reconnected")
		}
	})

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker":    cleanURL(mqttURL),
		"client_id": opts.ClientID,
	}).Info("MQTT client connected")

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// newClientOptions translates the configured broker URL into paho client
// options.
func newClientOptions(mqttURL, clientID string, insecureTLS bool, logger *logrus.Logger) (*mqtt.ClientOptions, error) {
	parsedURL, err := url.Parse(mqttURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}

	opts := mqtt.NewClientOptions()

	var brokerURL string
	switch parsedURL.Scheme {
	case "ws":
		brokerURL = mqttURL
		logger.Debug("Using WebSocket MQTT connection")
	case "wss":
		brokerURL = mqttURL
		logger.Debug("Using secure WebSocket MQTT connection")
	case "mqtt":
		brokerURL = strings.Replace(mqttURL, "mqtt://", "tcp://", 1)
		logger.Debug("Using standard MQTT connection (TCP)")
	case "mqtts":
		brokerURL = strings.Replace(mqttURL, "mqtts://", "ssl://", 1)
		logger.Debug("Using secure MQTT connection (SSL/TLS)")
	default:
		return nil, fmt.Errorf("unsupported protocol scheme: %s (supported: ws, wss, mqtt, mqtts)", parsedURL.Scheme)
	}

	// Self-signed broker certificates are common on home setups, but
	// skipping verification is opt-in
	if insecureTLS && (parsedURL.Scheme == "wss" || parsedURL.Scheme == "mqtts") {
		logger.Warn("MQTT broker certificate verification disabled")
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)

	if parsedURL.User != nil {
		username := parsedURL.User.Username()
		password, _ := parsedURL.User.Password()
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	return opts, nil
}

// Publish publishes a message to the specified topic.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	qos := byte(1) // At least once delivery
	token := c.client.Publish(topic, qos, retained, payload)

	// Avoid potential deadlocks: wait for completion with a timeout
	// instead of indefinitely.
	if !token.WaitTimeout(config.MQTTTimeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, config.MQTTTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"size":     len(payload),
		"retained": retained,
	}).Debug("Published MQTT message")

	return nil
}

// Subscribe subscribes to a topic with a message handler.
func (c *Client) Subscribe(topic string, handler mqtt.MessageHandler) error {
	qos := byte(1)
	token := c.client.Subscribe(topic, qos, handler)

	if !token.WaitTimeout(config.MQTTTimeout) {
		return fmt.Errorf("subscribe to topic %s timed out after %s", topic, config.MQTTTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.logger.WithField("topic", topic).Debug("Subscribed to MQTT topic")
	return nil
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect disconnects the client.
func (c *Client) Disconnect(quiesce uint) {
	c.client.Disconnect(quiesce)
	c.logger.Debug("MQTT client disconnected")
}

// cleanURL removes credentials from URL for logging.
func cleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}

	return parsed.String()
}

// VehicleTopic returns the base topic for one vehicle of an account.
func VehicleTopic(account, vehicleID string) string {
	return BuildCleanTopic("viper_hass", account, vehicleID)
}

// StateTopic returns the state topic for a vehicle.
func StateTopic(account, vehicleID string) string {
	return VehicleTopic(account, vehicleID) + "/state"
}

// CommandTopic returns the command topic for a vehicle.
func CommandTopic(account, vehicleID string) string {
	return VehicleTopic(account, vehicleID) + "/command"
}

// AvailabilityTopic returns the availability topic for an account.
func AvailabilityTopic(account string) string {
	return BuildCleanTopic("viper_hass", account) + "/availability"
}

// DiscoveryTopic returns the Home Assistant discovery topic for an entity.
func DiscoveryTopic(prefix, entityType, account, vehicleID, entityID string) string {
	node := BuildCleanTopic(fmt.Sprintf("viper_hass_%s_%s", account, vehicleID))
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, entityType, node, entityID)
}

// PublishAvailability publishes account availability status.
func (c *Client) PublishAvailability(account string, online bool) error {
	state := "offline"
	if online {
		state = "online"
	}
	return c.Publish(AvailabilityTopic(account), []byte(state), true)
}

// BuildCleanTopic ensures topic follows MQTT standards.
func BuildCleanTopic(parts ...string) string {
	var cleanParts []string
	for _, part := range parts {
		clean := strings.ReplaceAll(part, " ", "_")
		clean = strings.ReplaceAll(clean, "+", "plus")
		clean = strings.ReplaceAll(clean, "#", "hash")
		clean = strings.ToLower(clean)
		cleanParts = append(cleanParts, clean)
	}
	return strings.Join(cleanParts, "/")
}
