package transport

import (
	"sort"
	"sync"
)

// UserRoom room id for a user scoped channel
func UserRoom(userID string) string {
	return "user:" + userID
}

// MatchRoom room id for a conversation scoped channel
func MatchRoom(matchID string) string {
	return "match:" + matchID
}

// SubscriptionRegistry single source of truth for which rooms should be
// active. Decoupled from what the transport currently has joined; the
// manager reconciles the two on every (re)connect.
type SubscriptionRegistry struct {
	mu      sync.Mutex
	desired map[string]struct{}
}

// NewSubscriptionRegistry create SubscriptionRegistry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		desired: make(map[string]struct{}),
	}
}

// Join mark room as desired, idempotent. Return true when newly added.
func (r *SubscriptionRegistry) Join(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.desired[roomID]; ok {
		return false
	}
	r.desired[roomID] = struct{}{}
	return true
}

// Leave drop room from the desired set. Return true when it was present.
func (r *SubscriptionRegistry) Leave(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.desired[roomID]; !ok {
		return false
	}
	delete(r.desired, roomID)
	return true
}

// Has check room currently desired
func (r *SubscriptionRegistry) Has(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.desired[roomID]
	return ok
}

// Desired snapshot of desired rooms, sorted for deterministic replay
func (r *SubscriptionRegistry) Desired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.desired))
	for roomID := range r.desired {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}

// Clear drop every desired room, used on session teardown
func (r *SubscriptionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = make(map[string]struct{})
}
