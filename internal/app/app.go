package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/viper-hass/viper-hass/internal/bus"
	"github.com/viper-hass/viper-hass/internal/cache"
	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/server"
	"github.com/viper-hass/viper-hass/internal/transmission"
)

const (
	setupAttempts = 3
	setupDelay    = 5 * time.Second
)

// AccountRuntime bundles one account's coordinator with its API client.
type AccountRuntime struct {
	Coordinator *coordinator.Coordinator
	Client      transmission.CommandClient
}

// Run launches the polling pipelines and blocks until ctx is cancelled.
// Each account gets its own setup-then-poll goroutine; snapshot updates fan
// out over the message bus to the MQTT transmitter.
func Run(
	parentCtx context.Context,
	registry *coordinator.Registry,
	accounts []AccountRuntime,
	tx transmission.Transmitter,
	listener *transmission.CommandListener,
	httpd *server.HTTPd,
	logger *logrus.Logger,
) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	messageBus := bus.New()
	grp, ctx := errgroup.WithContext(ctx)

	// Per-account pipelines --------------------------------------------
	for _, account := range accounts {
		account := account
		grp.Go(func() error {
			return runAccount(ctx, registry, account, listener, messageBus, logger)
		})
	}

	// Transmitter ------------------------------------------------------
	if tx != nil {
		sub := messageBus.Subscribe()
		changes := cache.NewManager(logger)

		grp.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case update, ok := <-sub:
					if !ok {
						return nil
					}
					if !changes.Changed(update.Account, update.Snapshot) {
						logger.WithField("account", update.Account).Debug("Snapshot unchanged, skipping transmit")
						continue
					}
					if err := tx.Transmit(update); err != nil {
						logger.WithError(err).Warn("MQTT transmit failed")
					}
				}
			}
		})
	}

	// HTTP control surface ---------------------------------------------
	if httpd != nil {
		grp.Go(func() error {
			logger.WithField("addr", httpd.Addr).Info("HTTP server listening")
			if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = httpd.Shutdown(shutdownCtx)
			return ctx.Err()
		})
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Warn("app: background group exited")
	}
}

// runAccount performs one-time setup, wires the command listener and then
// runs the polling loop until cancellation.
func runAccount(ctx context.Context, registry *coordinator.Registry, account AccountRuntime, listener *transmission.CommandListener, messageBus *bus.Bus, logger *logrus.Logger) error {
	coord := account.Coordinator
	log := logger.WithField("account", coord.Account())

	err := retry.Do(
		func() error { return coord.Setup(ctx) },
		retry.Context(ctx),
		retry.Attempts(setupAttempts),
		retry.Delay(setupDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, coordinator.ErrReauthRequired)
		}),
	)
	if err != nil {
		registry.Remove(coord.Account())
		if errors.Is(err, coordinator.ErrReauthRequired) {
			log.WithError(err).Error("Account setup failed, credentials need to be re-entered")
			return nil
		}
		log.WithError(err).Error("Account setup failed")
		return nil
	}

	if listener != nil {
		if err := listener.Listen(coord, account.Client); err != nil {
			log.WithError(err).Warn("Failed to subscribe to command topics")
		}
	}

	// Initial refresh so entities populate without waiting for the timer
	// (or at all, when automatic polling is disabled).
	coord.RequestRefresh()

	err = pollLoop(ctx, coord, messageBus, log)
	if errors.Is(err, coordinator.ErrReauthRequired) {
		registry.Remove(coord.Account())
		log.WithError(err).Error("Authentication failed, stopping automatic polling; fix credentials and restart")
		return nil
	}
	return err
}

// pollLoop owns automatic scheduling for one coordinator. The cadence timer
// and coalesced manual requests share this single execution path into
// Refresh, so cycles never overlap. With polling disabled the timer case
// simply never arms.
func pollLoop(ctx context.Context, coord *coordinator.Coordinator, messageBus *bus.Bus, log *logrus.Entry) error {
	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if interval := coord.Interval(); interval > 0 {
			timer = time.NewTimer(interval)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-timerC:
		case <-coord.RefreshRequests():
			if timer != nil {
				timer.Stop()
			}
		}

		snap, err := coord.Refresh(ctx)
		switch {
		case err == nil:
			messageBus.Publish(&coordinator.Update{
				Account:     coord.Account(),
				Snapshot:    snap,
				LastUpdated: coord.LastUpdated(),
				Boosted:     coord.Boosted(),
			})
		case errors.Is(err, coordinator.ErrReauthRequired):
			return err
		default:
			log.WithError(err).Warn("Refresh cycle failed")
		}
	}
}
