package cache

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/status"
)

// Manager keeps the previously transmitted snapshot per account and answers
// the question: "has anything changed since the last time I asked?". It
// suppresses pointless MQTT republishes between refresh cycles that carried
// every vehicle's status forward unchanged.
//
// Behaviour:
//   - The first call for an account always returns true and stores the
//     snapshot.
//   - The stored snapshot is replaced only when a difference is detected.
type Manager struct {
	mu   sync.Mutex
	prev map[string]status.Snapshot
}

// NewManager returns a ready-to-use cache manager. The logger parameter is
// kept for parity with the other component constructors; nothing is logged
// in the steady state.
func NewManager(logger *logrus.Logger) *Manager {
	_ = logger
	return &Manager{prev: make(map[string]status.Snapshot)}
}

// Changed compares the supplied snapshot against the previously stored one
// for the account. If a change is detected it updates the stored snapshot
// and returns true.
func (m *Manager) Changed(account string, cur status.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.prev[account]
	if !ok || !equalSnapshots(prev, cur) {
		m.prev[account] = cur.Clone()
		return true
	}
	return false
}

// equalSnapshots does a per-vehicle deep comparison. Statuses are immutable
// once published, so pointer-equal entries short-circuit.
func equalSnapshots(a, b status.Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for id, sa := range a {
		sb, ok := b[id]
		if !ok {
			return false
		}
		if sa == sb {
			continue
		}
		if !reflect.DeepEqual(sa, sb) {
			return false
		}
	}
	return true
}
