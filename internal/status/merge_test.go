package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func docWith(dev *DeviceData) *Document {
	return &Document{Results: &DocumentResults{Device: dev}}
}

func TestMergeBothReads(t *testing.T) {
	speed := "5 mph"
	heading := 270
	voltage := 12.4

	active := Read{Doc: docWith(&DeviceData{
		Latitude:       44.9778,
		Longitude:      "-93.2650",
		Speed:          &speed,
		Heading:        &heading,
		BatteryVoltage: &voltage,
		DeviceStatus: map[string]any{
			"doorsOpen":  false,
			"ignitionOn": true,
			"trunkOpen":  float64(0),
			"hoodOpen":   float64(1),
		},
	})}
	current := Read{Doc: docWith(&DeviceData{
		DeviceStatus: map[string]any{
			"doorsLocked":         true,
			"remoteStarterActive": float64(1),
			"securitySystemArmed": false,
			"panicOn":             false,
		},
	})}

	st := Merge(active, current)

	require.NotNil(t, st.Latitude)
	require.InDelta(t, 44.9778, *st.Latitude, 1e-9)
	require.NotNil(t, st.Longitude)
	require.InDelta(t, -93.2650, *st.Longitude, 1e-9)
	require.Equal(t, &speed, st.Speed)
	require.Equal(t, &heading, st.Heading)
	require.Equal(t, &voltage, st.BatteryVoltage)

	require.NotNil(t, st.DoorsOpen)
	require.False(t, *st.DoorsOpen)
	require.NotNil(t, st.IgnitionOn)
	require.True(t, *st.IgnitionOn)
	require.NotNil(t, st.TrunkOpen)
	require.False(t, *st.TrunkOpen)
	require.NotNil(t, st.HoodOpen)
	require.True(t, *st.HoodOpen)

	require.NotNil(t, st.DoorsLocked)
	require.True(t, *st.DoorsLocked)
	require.NotNil(t, st.RemoteStarterActive)
	require.True(t, *st.RemoteStarterActive)
	require.NotNil(t, st.SecuritySystemArmed)
	require.False(t, *st.SecuritySystemArmed)
	require.NotNil(t, st.PanicOn)
	require.False(t, *st.PanicOn)
	require.Nil(t, st.ValetOn, "absent flag stays nil")
}

func TestMergeOneFailedRead(t *testing.T) {
	active := Read{Doc: docWith(&DeviceData{
		Latitude: 60.0,
		DeviceStatus: map[string]any{
			"ignitionOn": true,
		},
	})}
	current := Read{Err: errors.New("read timed out")}

	st := Merge(active, current)

	require.NotNil(t, st.Latitude)
	require.NotNil(t, st.IgnitionOn)
	require.Nil(t, st.DoorsLocked)
	require.Nil(t, st.RemoteStarterActive)
	require.Nil(t, st.SecuritySystemArmed)
}

func TestMergeBothFailed(t *testing.T) {
	st := Merge(Read{Err: errors.New("a")}, Read{Err: errors.New("b")})
	require.Equal(t, &VehicleStatus{}, st)
}

func TestMergeEmptyDocument(t *testing.T) {
	// a document without the results.device envelope is treated like a
	// failed read: all fields absent, no panic
	st := Merge(Read{Doc: &Document{}}, Read{Doc: docWith(nil)})
	require.Equal(t, &VehicleStatus{}, st)
}

func TestMergeUnparseableCoordinates(t *testing.T) {
	active := Read{Doc: docWith(&DeviceData{
		Latitude:  "not-a-number",
		Longitude: true,
		DeviceStatus: map[string]any{
			"doorsOpen": "yes", // uncoercible flag
		},
	})}

	st := Merge(active, Read{})

	require.Nil(t, st.Latitude)
	require.Nil(t, st.Longitude)
	require.Nil(t, st.DoorsOpen)
}

func TestParseDocument(t *testing.T) {
	body := []byte(`{
		"results": {
			"device": {
				"latitude": "44.5",
				"longitude": -93.1,
				"batteryVoltage": 12.8,
				"deviceStatus": {"doorsLocked": 1, "ignitionOn": false}
			}
		}
	}`)

	doc, err := ParseDocument(body)
	require.NoError(t, err)
	require.NotNil(t, doc.Results)
	require.NotNil(t, doc.Results.Device)

	st := Merge(Read{Doc: doc}, Read{Doc: doc})
	require.NotNil(t, st.Latitude)
	require.InDelta(t, 44.5, *st.Latitude, 1e-9)
	require.NotNil(t, st.DoorsLocked)
	require.True(t, *st.DoorsLocked)
	require.NotNil(t, st.IgnitionOn)
	require.False(t, *st.IgnitionOn)
}

func TestSnapshotAnyRemoteStarterActive(t *testing.T) {
	on, off := true, false

	require.False(t, Snapshot{}.AnyRemoteStarterActive())
	require.False(t, Snapshot{"1": {RemoteStarterActive: &off}}.AnyRemoteStarterActive())
	require.False(t, Snapshot{"1": {}}.AnyRemoteStarterActive())
	require.True(t, Snapshot{
		"1": {RemoteStarterActive: &off},
		"2": {RemoteStarterActive: &on},
	}.AnyRemoteStarterActive())
}

func TestVehicleModelString(t *testing.T) {
	require.Equal(t, "2019 Jeep Wrangler", Vehicle{Make: "Jeep", Model: "Wrangler", Year: "2019"}.ModelString())
	require.Equal(t, "Jeep", Vehicle{Make: "Jeep"}.ModelString())
	require.Equal(t, "", Vehicle{}.ModelString())
}
