package bus

import (
	"sync"

	"github.com/viper-hass/viper-hass/internal/coordinator"
)

// Bus provides fan-out pub/sub semantics for *coordinator.Update* messages.
// Each Subscribe call gets its own channel that receives every future
// publication. Past messages are not replayed. The implementation is safe
// for concurrent publishers and subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *coordinator.Update
}

// New creates a ready-to-use Bus.
func New() *Bus { return &Bus{} }

// Subscribe returns a read-only channel that will receive all future
// snapshot updates.
func (b *Bus) Subscribe() <-chan *coordinator.Update {
	ch := make(chan *coordinator.Update, 1) // small buffer avoids blocking
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the update to all subscribers in a best-effort,
// non-blocking way. A subscriber with a full buffer skips this update and
// catches up with the next one; the publisher is never stalled.
func (b *Bus) Publish(u *coordinator.Update) {
	b.mu.RLock()
	subs := make([]chan *coordinator.Update, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
			continue
		}
	}
}
