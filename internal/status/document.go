package status

import (
	"encoding/json"
	"strconv"
)

// Document is the parsed wire shape of one status read (or command
// response). The interesting data sits under results.device; deviceStatus is
// kept as a loose map because the set of flags varies per device generation
// and values arrive as bools or 0/1 numbers depending on firmware.
type Document struct {
	Results *DocumentResults `json:"results"`
}

// DocumentResults is the "results" envelope of a command response.
type DocumentResults struct {
	Device *DeviceData `json:"device"`
}

// DeviceData carries the per-device payload of a status read.
type DeviceData struct {
	Latitude       any            `json:"latitude"`
	Longitude      any            `json:"longitude"`
	Speed          *string        `json:"speed"`
	Heading        *int           `json:"heading"`
	BatteryVoltage *float64       `json:"batteryVoltage"`
	DeviceStatus   map[string]any `json:"deviceStatus"`
}

// ParseDocument decodes a raw response body into a Document.
func ParseDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// device returns the device payload, or nil when any envelope level is
// missing.
func (d *Document) device() *DeviceData {
	if d == nil || d.Results == nil {
		return nil
	}
	return d.Results.Device
}

// asFloat coerces a loosely-typed JSON value to float64. The API reports
// latitude/longitude as numbers or strings depending on device generation;
// anything unparseable is reported as absent rather than an error.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asBool coerces a device status flag to bool. Present-but-false is a valid
// value; absent or unrecognizable values report ok=false.
func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case json.Number:
		f, err := b.Float64()
		return f != 0, err == nil
	default:
		return false, false
	}
}
