package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viper-hass/viper-hass/internal/coordinator"
)

func TestPublishFanOut(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	u := &coordinator.Update{Account: "a"}
	b.Publish(u)

	require.Same(t, u, <-sub1)
	require.Same(t, u, <-sub2)
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	first := &coordinator.Update{Account: "first"}
	second := &coordinator.Update{Account: "second"}

	// the subscriber buffer holds one message; the second publish is
	// dropped for this subscriber instead of stalling the publisher
	b.Publish(first)
	b.Publish(second)

	require.Same(t, first, <-sub)
	select {
	case u := <-sub:
		t.Fatalf("unexpected buffered update %v", u.Account)
	default:
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	b.Publish(&coordinator.Update{Account: "a"})
}
