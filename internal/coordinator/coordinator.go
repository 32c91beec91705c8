package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/api"
	"github.com/viper-hass/viper-hass/internal/config"
	"github.com/viper-hass/viper-hass/internal/status"
)

// Client is the remote API surface the coordinator consumes.
type Client interface {
	IsAuthenticated() bool
	Authenticate(ctx context.Context) error
	Vehicles(ctx context.Context) ([]status.Vehicle, error)
	VehicleStatusReads(ctx context.Context, vehicleID string) (active, current status.Read)
}

// ErrReauthRequired marks a failed cycle that needs fresh credentials.
// Unlike an UpdateError it must not be retried automatically.
var ErrReauthRequired = errors.New("re-authentication required")

// UpdateError marks a failed refresh cycle that may succeed on retry.
type UpdateError struct {
	Message string
}

func (e *UpdateError) Error() string { return e.Message }

// Update is the published result of a successful refresh cycle.
type Update struct {
	Account     string
	Snapshot    status.Snapshot
	LastUpdated time.Time
	Boosted     bool
}

// Coordinator manages status polling for one account: it owns the refresh
// cycle, the cadence state machine, per-vehicle error isolation and the
// transparent re-authentication retry. Presentation adapters read its
// published snapshot without locking; updates replace the snapshot
// wholesale.
type Coordinator struct {
	account    string
	client     Client
	clock      clock.Clock
	log        *logrus.Entry
	vehicleIDs []string
	cadence    *cadence

	// identity cache, published once by Setup; the HTTP surface reads it
	// concurrently
	vehicles atomic.Pointer[map[string]status.Vehicle]

	// refresh serialization and coalesced manual requests
	mu        sync.Mutex
	refreshCh chan struct{}

	snapshot    atomic.Pointer[status.Snapshot]
	lastUpdated atomic.Pointer[time.Time]
}

// New creates a coordinator for one account. normalInterval 0 disables
// automatic polling; the coordinator then only refreshes on explicit
// request.
func New(account string, client Client, vehicleIDs []string, normalInterval time.Duration, clk clock.Clock, logger *logrus.Logger) *Coordinator {
	log := logger.WithField("account", account)
	return &Coordinator{
		account:    account,
		client:     client,
		clock:      clk,
		log:        log,
		vehicleIDs: append([]string(nil), vehicleIDs...),
		cadence:    newCadence(normalInterval, clk, log),
		refreshCh:  make(chan struct{}, 1),
	}
}

// Setup fetches the vehicle list once and builds the identity cache for the
// tracked ids. An auth failure is fatal and signals re-authentication; any
// other API failure is retryable.
func (c *Coordinator) Setup(ctx context.Context) error {
	vehicles, err := c.client.Vehicles(ctx)
	if err != nil {
		if api.IsAuthError(err) {
			return fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}
		return &UpdateError{Message: fmt.Sprintf("error fetching vehicles: %v", err)}
	}

	known := make(map[string]bool, len(c.vehicleIDs))
	for _, id := range c.vehicleIDs {
		known[id] = true
	}
	tracked := make(map[string]status.Vehicle, len(c.vehicleIDs))
	for _, v := range vehicles {
		if known[v.ID] {
			tracked[v.ID] = v
		}
	}

	for _, id := range c.vehicleIDs {
		if _, ok := tracked[id]; !ok {
			c.log.WithField("vehicle", id).Warn("Tracked vehicle not present in account")
		}
	}

	c.vehicles.Store(&tracked)

	c.log.WithField("vehicles", len(tracked)).Info("Coordinator ready")
	return nil
}

// Refresh runs one full refresh cycle. Cycles never overlap; a concurrent
// call blocks until the running cycle finishes.
func (c *Coordinator) Refresh(ctx context.Context) (status.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.update(ctx)
	switch {
	case err == nil:
		refreshCycles.WithLabelValues(c.account, "success").Inc()
	case errors.Is(err, ErrReauthRequired):
		refreshCycles.WithLabelValues(c.account, "auth_failed").Inc()
	default:
		refreshCycles.WithLabelValues(c.account, "failed").Inc()
	}
	return snap, err
}

// update implements the refresh algorithm for one cycle.
func (c *Coordinator) update(ctx context.Context) (status.Snapshot, error) {
	if !c.client.IsAuthenticated() {
		if err := c.client.Authenticate(ctx); err != nil {
			return c.recoverTopLevel(err)
		}
	}

	prev := c.Snapshot()
	data := make(status.Snapshot, len(c.vehicleIDs))
	var errs []string

	for _, id := range c.vehicleIDs {
		res, err := c.fetchVehicle(ctx, id)
		if err != nil {
			if errors.Is(err, ErrReauthRequired) {
				return nil, err
			}
			errs = append(errs, fmt.Sprintf("vehicle %s: %v", id, err))
			vehicleFailures.WithLabelValues(c.account).Inc()
			if prevStatus, ok := prev[id]; ok {
				// Preserve previous data if available
				data[id] = prevStatus
				c.log.WithError(err).WithField("vehicle", id).Warn("Failed to update vehicle, keeping previous data")
			}
			continue
		}

		data[id] = res.status
		if res.partial != "" {
			errs = append(errs, fmt.Sprintf("vehicle %s: %s", id, res.partial))
			vehicleFailures.WithLabelValues(c.account).Inc()
		}
	}

	// No data at all and no previous data to fall back on: the cycle
	// failed as a whole.
	if len(data) == 0 {
		if len(errs) > 0 {
			return nil, &UpdateError{Message: "error communicating with API: " + strings.Join(errs, "; ")}
		}
		return nil, &UpdateError{Message: "no data received from API"}
	}

	c.cadence.Evaluate(data)
	c.publish(data)

	if len(errs) > 0 {
		c.log.WithField("errors", strings.Join(errs, "; ")).Warn("Partial update failure")
	}

	return data, nil
}

// vehicleResult carries one vehicle's merged status plus an optional
// partial-failure message when exactly one of the two reads failed.
type vehicleResult struct {
	status  *status.VehicleStatus
	partial string
}

// fetchVehicle runs the two-read protocol for one vehicle. An auth-expired
// read triggers a single re-authentication followed by a single retry of
// both reads; a failed re-authentication with rejected credentials aborts
// the whole cycle.
func (c *Coordinator) fetchVehicle(ctx context.Context, id string) (vehicleResult, error) {
	active, current := c.client.VehicleStatusReads(ctx, id)

	if api.IsAuthError(active.Err) || api.IsAuthError(current.Err) {
		c.log.WithField("vehicle", id).Debug("Token expired, re-authenticating")
		if err := c.client.Authenticate(ctx); err != nil {
			if api.IsAuthError(err) {
				return vehicleResult{}, fmt.Errorf("%w: %w", ErrReauthRequired, err)
			}
			return vehicleResult{}, err
		}
		active, current = c.client.VehicleStatusReads(ctx, id)
	}

	if active.Failed() && current.Failed() {
		err := errors.Join(active.Err, current.Err)
		if err == nil {
			err = errors.New("no status payload received")
		}
		return vehicleResult{}, err
	}

	res := vehicleResult{status: status.Merge(active, current)}
	switch {
	case active.Failed():
		res.partial = fmt.Sprintf("active status read failed: %v", active.Err)
	case current.Failed():
		res.partial = fmt.Sprintf("current status read failed: %v", current.Err)
	}
	return res, nil
}

// recoverTopLevel handles a failure before any vehicle was attempted. Auth
// failures require user action; an API failure falls back to the previous
// snapshot when one exists.
func (c *Coordinator) recoverTopLevel(err error) (status.Snapshot, error) {
	if api.IsAuthError(err) {
		return nil, fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}
	if prev := c.Snapshot(); prev != nil {
		c.log.WithError(err).Warn("API error during update, keeping previous data")
		return prev, nil
	}
	return nil, &UpdateError{Message: fmt.Sprintf("error communicating with API: %v", err)}
}

// publish atomically replaces the snapshot and stamps the last successful
// update time.
func (c *Coordinator) publish(snap status.Snapshot) {
	now := c.clock.Now()
	c.snapshot.Store(&snap)
	c.lastUpdated.Store(&now)
	boostedState.WithLabelValues(c.account).Set(btof(c.cadence.Boosted()))
}

// RequestRefresh asks for a refresh cycle without blocking. Requests
// arriving while a cycle is pending coalesce into one.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// RefreshRequests exposes the coalesced manual-refresh channel to the
// polling loop that owns cycle execution.
func (c *Coordinator) RefreshRequests() <-chan struct{} {
	return c.refreshCh
}

// RefreshAfterAction schedules exactly one refresh after a fixed delay, so
// the vehicle backend has time to reflect a just-issued command.
// Fire-and-forget relative to the caller.
func (c *Coordinator) RefreshAfterAction() {
	c.log.WithField("delay", config.ActionRefreshDelay).Debug("Scheduling status refresh after action")
	c.clock.AfterFunc(config.ActionRefreshDelay, c.RequestRefresh)
}

// StartBoostedPolling switches to the boosted polling tier, typically right
// after a remote start command was issued.
func (c *Coordinator) StartBoostedPolling() {
	c.cadence.Boost()
	boostedState.WithLabelValues(c.account).Set(1)
}

// Account returns the registry key of this coordinator.
func (c *Coordinator) Account() string { return c.account }

// VehicleIDs returns the tracked vehicle ids.
func (c *Coordinator) VehicleIDs() []string {
	return append([]string(nil), c.vehicleIDs...)
}

// Vehicle returns the cached identity of a tracked vehicle; nothing is
// known before Setup has run.
func (c *Coordinator) Vehicle(id string) (status.Vehicle, bool) {
	m := c.vehicles.Load()
	if m == nil {
		return status.Vehicle{}, false
	}
	v, ok := (*m)[id]
	return v, ok
}

// Snapshot returns the currently published snapshot, nil before the first
// successful refresh. The returned map must be treated as read-only.
func (c *Coordinator) Snapshot() status.Snapshot {
	if p := c.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// LastUpdated returns the wall-clock time of the most recent successful
// refresh; the zero time before that.
func (c *Coordinator) LastUpdated() time.Time {
	if p := c.lastUpdated.Load(); p != nil {
		return *p
	}
	return time.Time{}
}

// Boosted reports whether boosted polling is active.
func (c *Coordinator) Boosted() bool { return c.cadence.Boosted() }

// Interval returns the currently active polling interval; zero when
// automatic polling is disabled.
func (c *Coordinator) Interval() time.Duration { return c.cadence.Interval() }

func btof(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
