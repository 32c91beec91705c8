package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/netutil"
	"github.com/viper-hass/viper-hass/internal/status"
)

// DefaultBaseURL is the production SmartStart cloud endpoint.
const DefaultBaseURL = "https://www.vcp.cloud/v1"

const (
	loginPath   = "/auth/login"
	devicesPath = "/devices/search/null"
	commandPath = "/devices/command"
)

// Client talks to the SmartStart cloud API. It holds the bearer credential
// obtained by Authenticate and is safe for concurrent use; the coordinator
// issues the two status reads for a vehicle in parallel.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logrus.Logger

	mu              sync.Mutex
	accessToken     string
	tokenExpiration int64
}

// NewClient creates a SmartStart cloud client. Pass DefaultBaseURL outside
// of tests.
func NewClient(baseURL, username, password string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: netutil.NewCloudTransport(logger),
		},
		logger: logger,
	}
}

// SetTimeout configures the HTTP client timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// IsAuthenticated reports whether the client holds an access token. The
// token may still be expired server-side; callers handle the resulting
// AuthError by re-authenticating.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// Authenticate obtains a bearer credential from the login endpoint.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}

	c.logger.WithField("username", c.username).Debug("Authenticating")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return apiErrorf(err, "building login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiErrorf(err, "connection error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return authErrorf(nil, "authentication failed: status %d", resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return apiErrorf(err, "invalid response format")
	}
	if login.Results == nil || login.Results.AuthToken == nil || login.Results.AuthToken.AccessToken == "" {
		return authErrorf(nil, "invalid authentication response")
	}

	c.mu.Lock()
	c.accessToken = login.Results.AuthToken.AccessToken
	c.tokenExpiration = login.Results.AuthToken.Expiration
	c.mu.Unlock()

	c.logger.Debug("Authentication successful")
	return nil
}

// Vehicles fetches the full device list visible to the account.
func (c *Client) Vehicles(ctx context.Context) ([]status.Vehicle, error) {
	body, err := c.get(ctx, devicesPath)
	if err != nil {
		return nil, err
	}

	var devices devicesResponse
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, apiErrorf(err, "invalid device list response")
	}

	vehicles := make([]status.Vehicle, 0, len(devices.Results.Devices))
	for _, dev := range devices.Results.Devices {
		id := deviceIDString(dev.ID)
		name := dev.Name
		if name == "" {
			name = "Vehicle " + id
		}
		vehicles = append(vehicles, status.Vehicle{
			ID:    id,
			Name:  name,
			Make:  dev.Make,
			Model: dev.Model,
			Year:  dev.Year,
		})
	}

	c.logger.WithField("count", len(vehicles)).Debug("Fetched vehicle list")
	return vehicles, nil
}

// VehicleStatusReads issues the two status reads for one vehicle
// concurrently and surfaces both outcomes. Neither read short-circuits the
// other; the caller merges whatever each could supply.
func (c *Client) VehicleStatusReads(ctx context.Context, vehicleID string) (active, current status.Read) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		active.Doc, active.Err = c.command(ctx, vehicleID, commandReadActive)
	}()
	go func() {
		defer wg.Done()
		current.Doc, current.Err = c.command(ctx, vehicleID, commandReadCurrent)
	}()

	wg.Wait()
	return active, current
}

// Command sends an arm/disarm/remote command. Success is the presence of
// the expected response envelope.
func (c *Client) Command(ctx context.Context, vehicleID, command string) error {
	doc, err := c.command(ctx, vehicleID, command)
	if err != nil {
		return err
	}
	if doc.Results == nil {
		return apiErrorf(nil, "unexpected %s response for vehicle %s", command, vehicleID)
	}
	return nil
}

// command posts a single command to the device command endpoint and parses
// the response envelope.
func (c *Client) command(ctx context.Context, vehicleID, command string) (*status.Document, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(commandRequest{Command: command, DeviceID: vehicleID})
	if err != nil {
		return nil, apiErrorf(err, "encoding %s command", command)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(payload))
	if err != nil {
		return nil, apiErrorf(err, "building %s request", command)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apiErrorf(err, "connection error")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, authErrorf(nil, "token expired")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorf(nil, "command %s failed: status %d", command, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apiErrorf(err, "reading %s response", command)
	}

	doc, err := status.ParseDocument(body)
	if err != nil {
		return nil, apiErrorf(err, "invalid %s response", command)
	}

	c.logger.WithFields(logrus.Fields{
		"vehicle": vehicleID,
		"command": command,
		"size":    len(body),
	}).Debug("Command response received")

	return doc, nil
}

// get performs an authenticated GET against the API.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, apiErrorf(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apiErrorf(err, "connection error")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, authErrorf(nil, "token expired")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorf(nil, "API error: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" {
		return "", authErrorf(nil, "not authenticated")
	}
	return c.accessToken, nil
}

// deviceIDString renders the device id, which the API reports as either a
// number or a string depending on endpoint version.
func deviceIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
