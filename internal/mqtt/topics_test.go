package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicHelpers(t *testing.T) {
	require.Equal(t, "viper_hass/acct/1234", VehicleTopic("acct", "1234"))
	require.Equal(t, "viper_hass/acct/1234/state", StateTopic("acct", "1234"))
	require.Equal(t, "viper_hass/acct/1234/command", CommandTopic("acct", "1234"))
	require.Equal(t, "viper_hass/acct/availability", AvailabilityTopic("acct"))
}

func TestDiscoveryTopic(t *testing.T) {
	topic := DiscoveryTopic("homeassistant", "binary_sensor", "acct", "1234", "doors_locked")
	require.Equal(t, "homeassistant/binary_sensor/viper_hass_acct_1234/doors_locked/config", topic)
}

func TestBuildCleanTopic(t *testing.T) {
	require.Equal(t, "viper_hass/my_account/car_one", BuildCleanTopic("viper_hass", "My Account", "Car One"))
	require.Equal(t, "aplusb/chash", BuildCleanTopic("A+B", "C#"))
}
