package status

// Read is the outcome of one remote status read: either a parsed document or
// the error that produced no document. Both may be nil-ish (empty payload),
// which merges to an absent contribution rather than an error.
type Read struct {
	Doc *Document
	Err error
}

// Failed reports whether the read produced no usable document.
func (r Read) Failed() bool {
	return r.Err != nil || r.Doc == nil
}

// Merge combines the two independent status reads for one vehicle into a
// single VehicleStatus. Each read is processed on its own: a failed or empty
// read only leaves that read's fields absent, it never blocks the other
// read's fields from being merged. A fully absent result is valid.
func Merge(active, current Read) *VehicleStatus {
	st := &VehicleStatus{}
	mergeActive(st, active)
	mergeCurrent(st, current)
	return st
}

// mergeActive fills position, motion and body state from the read_active
// payload.
func mergeActive(st *VehicleStatus, r Read) {
	dev := deviceOf(r)
	if dev == nil {
		return
	}

	if dev.Latitude != nil {
		if lat, ok := asFloat(dev.Latitude); ok {
			st.Latitude = &lat
		}
	}
	if dev.Longitude != nil {
		if lon, ok := asFloat(dev.Longitude); ok {
			st.Longitude = &lon
		}
	}
	st.Speed = dev.Speed
	st.Heading = dev.Heading
	st.BatteryVoltage = dev.BatteryVoltage

	st.DoorsOpen = flag(dev.DeviceStatus, "doorsOpen")
	st.IgnitionOn = flag(dev.DeviceStatus, "ignitionOn")
	st.TrunkOpen = flag(dev.DeviceStatus, "trunkOpen")
	st.HoodOpen = flag(dev.DeviceStatus, "hoodOpen")
}

// mergeCurrent fills lock, security and remote starter state from the
// read_current payload.
func mergeCurrent(st *VehicleStatus, r Read) {
	dev := deviceOf(r)
	if dev == nil {
		return
	}

	st.DoorsLocked = flag(dev.DeviceStatus, "doorsLocked")
	st.RemoteStarterActive = flag(dev.DeviceStatus, "remoteStarterActive")
	st.SecuritySystemArmed = flag(dev.DeviceStatus, "securitySystemArmed")
	st.PanicOn = flag(dev.DeviceStatus, "panicOn")
	st.ValetOn = flag(dev.DeviceStatus, "valetOn")
}

func deviceOf(r Read) *DeviceData {
	if r.Failed() {
		return nil
	}
	return r.Doc.device()
}

// flag extracts a boolean status flag; nil when the key is missing, null or
// uncoercible.
func flag(status map[string]any, key string) *bool {
	v, ok := status[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := asBool(v)
	if !ok {
		return nil
	}
	return &b
}
