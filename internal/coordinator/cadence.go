package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/config"
	"github.com/viper-hass/viper-hass/internal/status"
)

// Cadence states and events. Exactly one state is active at a time: normal
// (the configured interval, possibly disabled) or boosted (a short interval
// with an absolute expiry).
const (
	cadenceNormal  = "normal"
	cadenceBoosted = "boosted"

	eventBoost  = "boost"
	eventSettle = "settle"
)

// cadence is the polling speed state machine. Boosting is externally
// triggered (after a remote start command); settling back to normal happens
// automatically, evaluated after every successful refresh.
type cadence struct {
	mu    sync.Mutex
	fsm   *fsm.FSM
	clock clock.Clock
	log   *logrus.Entry

	normalInterval  time.Duration // 0 = disabled
	boostedInterval time.Duration
	maxBoost        time.Duration
	boostedUntil    time.Time
}

func newCadence(normalInterval time.Duration, clk clock.Clock, log *logrus.Entry) *cadence {
	c := &cadence{
		clock:           clk,
		log:             log,
		normalInterval:  normalInterval,
		boostedInterval: config.BoostedInterval,
		maxBoost:        config.BoostedMaxDuration,
	}

	c.fsm = fsm.NewFSM(
		cadenceNormal,
		fsm.Events{
			{Name: eventBoost, Src: []string{cadenceNormal, cadenceBoosted}, Dst: cadenceBoosted},
			{Name: eventSettle, Src: []string{cadenceBoosted}, Dst: cadenceNormal},
		},
		fsm.Callbacks{},
	)

	return c
}

// Boost switches to the boosted tier and (re)arms the expiry window.
// Idempotent: boosting while already boosted just resets the window, which
// the FSM reports as a no-transition - that is fine.
func (c *cadence) Boost() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.boostedUntil = c.clock.Now().Add(c.maxBoost)
	_ = c.fsm.Event(context.Background(), eventBoost)

	c.log.WithFields(logrus.Fields{
		"until":    c.boostedUntil,
		"interval": c.boostedInterval,
	}).Debug("Boosted polling enabled")
}

// Evaluate runs the automatic downgrade check against a fresh snapshot and
// reports whether the cadence reverted to normal. Expiry takes precedence
// over remote starter activity.
func (c *cadence) Evaluate(snap status.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.Is(cadenceBoosted) {
		return false
	}

	now := c.clock.Now()
	if now.Before(c.boostedUntil) && snap.AnyRemoteStarterActive() {
		return false
	}

	if !now.Before(c.boostedUntil) {
		c.log.Debug("Boosted polling max duration reached, resetting to normal")
	} else {
		c.log.Debug("No vehicles have remote start active, resetting to normal polling")
	}

	c.boostedUntil = time.Time{}
	_ = c.fsm.Event(context.Background(), eventSettle)

	if c.normalInterval == 0 {
		c.log.Debug("Polling interval reset to disabled (manual refresh only)")
	} else {
		c.log.WithField("interval", c.normalInterval).Debug("Polling interval reset")
	}
	return true
}

// Boosted reports whether boosted polling is active.
func (c *cadence) Boosted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.Is(cadenceBoosted)
}

// Interval returns the currently active polling interval. Zero means no
// automatic polling.
func (c *cadence) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.Is(cadenceBoosted) {
		return c.boostedInterval
	}
	return c.normalInterval
}
