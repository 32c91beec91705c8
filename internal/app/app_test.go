package app

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/viper-hass/viper-hass/internal/api"
	"github.com/viper-hass/viper-hass/internal/bus"
	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/status"
)

// loopClient drives pollLoop tests: every status read succeeds unless
// authErr is set, in which case both reads and re-authentication fail.
type loopClient struct {
	authErr error
}

func (c *loopClient) IsAuthenticated() bool { return true }

func (c *loopClient) Authenticate(context.Context) error { return c.authErr }

func (c *loopClient) Vehicles(context.Context) ([]status.Vehicle, error) {
	return []status.Vehicle{{ID: "v1"}}, nil
}

func (c *loopClient) VehicleStatusReads(context.Context, string) (status.Read, status.Read) {
	if c.authErr != nil {
		return status.Read{Err: c.authErr}, status.Read{Err: c.authErr}
	}
	doc := &status.Document{Results: &status.DocumentResults{Device: &status.DeviceData{}}}
	return status.Read{Doc: doc}, status.Read{Doc: doc}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestPollLoopPublishesOnManualRequest(t *testing.T) {
	logger := testLogger()
	coord := coordinator.New("acct", &loopClient{}, []string{"v1"}, 0, clock.NewMock(), logger)

	messageBus := bus.New()
	sub := messageBus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- pollLoop(ctx, coord, messageBus, logger.WithField("account", "acct"))
	}()

	coord.RequestRefresh()

	select {
	case update := <-sub:
		require.Equal(t, "acct", update.Account)
		require.Contains(t, update.Snapshot, "v1")
	case <-time.After(2 * time.Second):
		t.Fatal("no update published after manual refresh request")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop on cancellation")
	}
}

func TestPollLoopStopsOnRejectedCredentials(t *testing.T) {
	logger := testLogger()
	client := &loopClient{authErr: &api.AuthError{Message: "bad credentials"}}
	coord := coordinator.New("acct", client, []string{"v1"}, 0, clock.NewMock(), logger)

	messageBus := bus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- pollLoop(ctx, coord, messageBus, logger.WithField("account", "acct"))
	}()

	coord.RequestRefresh()

	select {
	case err := <-done:
		require.ErrorIs(t, err, coordinator.ErrReauthRequired)
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop on auth failure")
	}
}

func TestRunAccountRemovesRegistrationOnSetupAuthFailure(t *testing.T) {
	logger := testLogger()
	client := &setupFailClient{}
	coord := coordinator.New("acct", client, []string{"v1"}, 0, clock.NewMock(), logger)

	registry := coordinator.NewRegistry()
	registry.Add(coord)

	err := runAccount(context.Background(), registry, AccountRuntime{Coordinator: coord}, nil, bus.New(), logger)
	require.NoError(t, err)

	_, ok := registry.Get("acct")
	require.False(t, ok)
}

// setupFailClient rejects the vehicle list fetch with an auth error.
type setupFailClient struct{ loopClient }

func (c *setupFailClient) Vehicles(context.Context) ([]status.Vehicle, error) {
	return nil, &api.AuthError{Message: "bad credentials"}
}
