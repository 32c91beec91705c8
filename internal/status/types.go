package status

// VehicleStatus holds one vehicle's consolidated state for a single refresh
// cycle. Every field is a pointer so a missing value (nil) stays
// distinguishable from false/0 - the cloud API routinely omits fields
// depending on device generation and signal conditions.
type VehicleStatus struct {
	// Position / motion (read_active)
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Speed          *string  `json:"speed,omitempty"`
	Heading        *int     `json:"heading,omitempty"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`

	// Body state (read_active)
	DoorsOpen  *bool `json:"doors_open,omitempty"`
	IgnitionOn *bool `json:"ignition_on,omitempty"`
	TrunkOpen  *bool `json:"trunk_open,omitempty"`
	HoodOpen   *bool `json:"hood_open,omitempty"`

	// Security / remote start (read_current)
	DoorsLocked         *bool `json:"doors_locked,omitempty"`
	RemoteStarterActive *bool `json:"remote_starter_active,omitempty"`
	SecuritySystemArmed *bool `json:"security_system_armed,omitempty"`
	PanicOn             *bool `json:"panic_on,omitempty"`
	ValetOn             *bool `json:"valet_on,omitempty"`
}

// Vehicle is the static identity of a tracked vehicle, fetched once during
// coordinator setup.
type Vehicle struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  string `json:"year,omitempty"`
}

// ModelString assembles "<year> <make> <model>" from whatever identity
// fields are present. Empty when none are known.
func (v Vehicle) ModelString() string {
	var s string
	for _, part := range []string{v.Year, v.Make, v.Model} {
		if part == "" {
			continue
		}
		if s != "" {
			s += " "
		}
		s += part
	}
	return s
}

// Snapshot maps vehicle id to its latest known status. A snapshot is built
// fresh every refresh cycle and replaced wholesale; entries are carried
// forward on per-vehicle failures, never deleted.
type Snapshot map[string]*VehicleStatus

// Clone returns a shallow copy of the snapshot. Status values are treated as
// immutable once published, so sharing the pointers is fine.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, st := range s {
		out[id] = st
	}
	return out
}

// AnyRemoteStarterActive reports whether at least one vehicle in the
// snapshot explicitly reports an active remote starter. Vehicles with the
// field absent do not count.
func (s Snapshot) AnyRemoteStarterActive() bool {
	for _, st := range s {
		if st != nil && st.RemoteStarterActive != nil && *st.RemoteStarterActive {
			return true
		}
	}
	return false
}
