package app

import "sync"

// UnreadAggregator derived read-only unread projection. Recomputed on
// every store notification; TotalUnreadConversations counts
// conversations with unread > 0, it is a conversation badge and never
// a sum of messages.
type UnreadAggregator struct {
	mu              sync.Mutex
	store           *ConversationStore
	perConversation map[string]int
	total           int
	unsub           func()
}

// NewUnreadAggregator create UnreadAggregator and subscribe it to the store
func NewUnreadAggregator(store *ConversationStore) *UnreadAggregator {
	a := &UnreadAggregator{
		store:           store,
		perConversation: make(map[string]int),
	}
	a.unsub = store.Subscribe(a.recompute)
	a.recompute()
	return a
}

func (a *UnreadAggregator) recompute() {
	counts := a.store.UnreadByConversation()
	total := 0
	for _, n := range counts {
		if n > 0 {
			total++
		}
	}

	a.mu.Lock()
	a.perConversation = counts
	a.total = total
	a.mu.Unlock()
}

// PerConversationUnread unread message count per conversation
func (a *UnreadAggregator) PerConversationUnread() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.perConversation))
	for k, v := range a.perConversation {
		out[k] = v
	}
	return out
}

// TotalUnreadConversations count of conversations with unread > 0
func (a *UnreadAggregator) TotalUnreadConversations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Override legacy one-shot overwrite kept for backward compatibility.
// The next store mutation recomputes and supersedes it.
func (a *UnreadAggregator) Override(matchID string, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.perConversation[matchID]
	a.perConversation[matchID] = count
	if prev > 0 && count == 0 {
		a.total--
	} else if prev == 0 && count > 0 {
		a.total++
	}
}

// Close detach from the store
func (a *UnreadAggregator) Close() {
	if a.unsub != nil {
		a.unsub()
		a.unsub = nil
	}
}
