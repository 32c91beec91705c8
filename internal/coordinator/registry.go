package coordinator

import (
	"sort"
	"sync"
)

// Registry holds the live coordinators of the process, keyed by account id.
// It backs the "refresh all tracked accounts" boundary and the HTTP status
// surface. Coordinators are added during setup and removed on teardown.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{coordinators: make(map[string]*Coordinator)}
}

// Add registers a coordinator under its account id, replacing any previous
// registration for the same account.
func (r *Registry) Add(c *Coordinator) {
	r.mu.Lock()
	r.coordinators[c.Account()] = c
	r.mu.Unlock()
}

// Remove drops the coordinator registered for the account, if any.
func (r *Registry) Remove(account string) {
	r.mu.Lock()
	delete(r.coordinators, account)
	r.mu.Unlock()
}

// Get returns the coordinator for an account.
func (r *Registry) Get(account string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coordinators[account]
	return c, ok
}

// Accounts returns the registered account ids, sorted.
func (r *Registry) Accounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]string, 0, len(r.coordinators))
	for account := range r.coordinators {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// RefreshAll requests a refresh on every registered coordinator. Requests
// coalesce per coordinator; the call never blocks on cycle execution.
func (r *Registry) RefreshAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.coordinators {
		c.RequestRefresh()
	}
	return len(r.coordinators)
}
