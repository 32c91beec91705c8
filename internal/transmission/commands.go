package transmission

import (
	"context"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/api"
	"github.com/viper-hass/viper-hass/internal/config"
	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/mqtt"
)

// CommandClient is the command surface of the remote API.
type CommandClient interface {
	Command(ctx context.Context, vehicleID, command string) error
}

// CommandListener subscribes to the per-vehicle command topics and turns
// button presses from Home Assistant into API commands. Successful commands
// trigger a delayed refresh; a remote start additionally switches the
// coordinator to boosted polling.
type CommandListener struct {
	client *mqtt.Client
	logger *logrus.Logger
}

// NewCommandListener creates a command listener on the shared MQTT client.
func NewCommandListener(client *mqtt.Client, logger *logrus.Logger) *CommandListener {
	return &CommandListener{client: client, logger: logger}
}

// Listen subscribes to the command topics of every vehicle tracked by the
// coordinator.
func (l *CommandListener) Listen(coord *coordinator.Coordinator, apiClient CommandClient) error {
	for _, vehicleID := range coord.VehicleIDs() {
		topic := mqtt.CommandTopic(coord.Account(), vehicleID)
		handler := l.handler(coord, apiClient, vehicleID)
		if err := l.client.Subscribe(topic, handler); err != nil {
			return err
		}
	}
	return nil
}

func (l *CommandListener) handler(coord *coordinator.Coordinator, apiClient CommandClient, vehicleID string) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		command := strings.TrimSpace(string(msg.Payload()))
		log := l.logger.WithFields(logrus.Fields{
			"account": coord.Account(),
			"vehicle": vehicleID,
			"command": command,
		})
		log.Debug("Received command")

		switch command {
		case "refresh":
			coord.RequestRefresh()
			return
		case "lock":
			l.send(log, coord, apiClient, vehicleID, api.CommandArm, false)
		case "unlock":
			l.send(log, coord, apiClient, vehicleID, api.CommandDisarm, false)
		case "remote_start":
			if !l.remoteStartAllowed(coord, vehicleID, log) {
				return
			}
			l.send(log, coord, apiClient, vehicleID, api.CommandRemote, true)
		default:
			log.Warn("Unknown command ignored")
		}
	}
}

// remoteStartAllowed ports the guard from the remote start switch: never
// start while the ignition is on from the key.
func (l *CommandListener) remoteStartAllowed(coord *coordinator.Coordinator, vehicleID string, log *logrus.Entry) bool {
	snap := coord.Snapshot()
	if snap == nil {
		return true
	}
	st, ok := snap[vehicleID]
	if !ok || st == nil {
		return true
	}
	if st.IgnitionOn != nil && *st.IgnitionOn {
		log.Warn("Cannot remote start - ignition is already on")
		return false
	}
	return true
}

func (l *CommandListener) send(log *logrus.Entry, coord *coordinator.Coordinator, apiClient CommandClient, vehicleID, apiCommand string, boost bool) {
	ctx, cancel := context.WithTimeout(context.Background(), config.APITimeout)
	defer cancel()

	if err := apiClient.Command(ctx, vehicleID, apiCommand); err != nil {
		log.WithError(err).Warn("Command failed")
		return
	}

	if boost {
		coord.StartBoostedPolling()
	}
	coord.RefreshAfterAction()
	log.Info("Command sent")
}
