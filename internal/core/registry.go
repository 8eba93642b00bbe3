package core

import (
	"context"
	"sync"

	"github.com/nortonjulian/chatforia-signal/internal/metrics"
)

// Publisher delivers an event to every live connection of a user.
type Publisher interface {
	Publish(ctx context.Context, userID int64, ev *Event) error
}

// Registry maps a user id to the set of its live connections on this process.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]map[*Client]struct{})}
}

// Add inserts a client under its user. Returns true if newly added.
func (r *Registry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[c.UserID] = set
	}
	if _, exists := set[c]; exists {
		return false
	}
	set[c] = struct{}{}
	return true
}

// Remove deletes a client. Returns true if removed.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		return false
	}
	if _, exists := set[c]; !exists {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.users, c.UserID)
	}
	return true
}

// Lookup returns a snapshot of the user's live connections.
func (r *Registry) Lookup(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// Online reports whether the user has at least one live connection here.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Deliver sends ev to every connection of the user and returns how many accepted it.
// Slow consumers drop the event; offline users get nothing.
func (r *Registry) Deliver(userID int64, ev *Event) int {
	sent := 0
	for _, c := range r.Lookup(userID) {
		if c.Send(ev) {
			sent++
			metrics.EventsDelivered.WithLabelValues("sent").Inc()
		} else {
			metrics.EventsDelivered.WithLabelValues("dropped").Inc()
		}
	}
	return sent
}

// Publish implements Publisher for single-process deployments.
func (r *Registry) Publish(_ context.Context, userID int64, ev *Event) error {
	r.Deliver(userID, ev)
	return nil
}

var _ Publisher = (*Registry)(nil)
