package api

// Commands accepted by the devices/command endpoint.
const (
	CommandArm         = "arm"
	CommandDisarm      = "disarm"
	CommandRemote      = "remote"
	commandReadActive  = "read_active"
	commandReadCurrent = "read_current"
)

// loginResponse is the envelope of a successful authentication.
type loginResponse struct {
	Results *struct {
		AuthToken *struct {
			AccessToken string `json:"accessToken"`
			Expiration  int64  `json:"expiration"`
		} `json:"authToken"`
	} `json:"results"`
}

// devicesResponse is the envelope of the device search endpoint.
type devicesResponse struct {
	Results struct {
		Devices []deviceEntry `json:"devices"`
	} `json:"results"`
}

type deviceEntry struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// commandRequest is the body posted to the command endpoint.
type commandRequest struct {
	Command  string `json:"command"`
	DeviceID string `json:"deviceId"`
}
