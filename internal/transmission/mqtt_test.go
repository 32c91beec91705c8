package transmission

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/viper-hass/viper-hass/internal/status"
)

func boolPtr(b bool) *bool { return &b }

func TestDeriveState(t *testing.T) {
	require.Equal(t, "parked", deriveState(&status.VehicleStatus{}))
	require.Equal(t, "armed", deriveState(&status.VehicleStatus{
		SecuritySystemArmed: boolPtr(true),
	}))
	require.Equal(t, "running", deriveState(&status.VehicleStatus{
		IgnitionOn:          boolPtr(true),
		SecuritySystemArmed: boolPtr(true),
	}))
	require.Equal(t, "remote_running", deriveState(&status.VehicleStatus{
		RemoteStarterActive: boolPtr(true),
		IgnitionOn:          boolPtr(true),
	}))
	require.Equal(t, "parked", deriveState(&status.VehicleStatus{
		RemoteStarterActive: boolPtr(false),
		IgnitionOn:          boolPtr(false),
	}))
}

func TestStatePayloadOmitsAbsentFields(t *testing.T) {
	voltage := 12.6
	st := &status.VehicleStatus{
		BatteryVoltage: &voltage,
		DoorsLocked:    boolPtr(true),
	}
	updated := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	body, err := json.Marshal(statePayload{
		VehicleStatus: st,
		State:         deriveState(st),
		LastUpdated:   updated.Format(time.RFC3339),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	require.Equal(t, "parked", decoded["state"])
	require.Equal(t, 12.6, decoded["battery_voltage"])
	require.Equal(t, true, decoded["doors_locked"])
	require.Equal(t, "2026-03-14T15:09:26Z", decoded["last_updated"])

	// absent status fields must not appear at all, so the discovery
	// templates report them as unknown
	_, present := decoded["ignition_on"]
	require.False(t, present)
	_, present = decoded["latitude"]
	require.False(t, present)
}

func TestBoolTemplate(t *testing.T) {
	tpl := boolTemplate("doors_locked")
	require.Contains(t, tpl, "value_json.doors_locked is defined")
	require.Contains(t, tpl, "'ON' if value_json.doors_locked else 'OFF'")
	require.Contains(t, tpl, "None")
}

func TestOptionalTemplate(t *testing.T) {
	tpl := optionalTemplate("battery_voltage")
	require.Contains(t, tpl, "value_json.battery_voltage is defined")
	require.Contains(t, tpl, "{{ value_json.battery_voltage }}")
	require.Contains(t, tpl, "None")
}
