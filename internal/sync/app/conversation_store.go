package app

import (
	"sort"
	"sync"
	"time"

	"match_sync_service/internal/sync/domain"
	"match_sync_service/pkg"
)

const (
	defaultTypingTTL   = 5 * time.Second
	defaultDedupWindow = 15 * time.Second
)

// StoreOptions reconciliation store tunables
type StoreOptions struct {
	// TypingTTL silence after which a typing session reverts to idle
	TypingTTL time.Duration
	// DedupWindow max clock skew between a provisional message and its
	// server echo for them to be treated as the same message
	DedupWindow time.Duration
}

// ConversationStore authoritative in-memory conversation state.
// Exclusively owns Conversation/Message mutation; every mutation runs
// serialized under one mutex and notifies subscribers synchronously,
// exactly once per external call.
type ConversationStore struct {
	mu            sync.Mutex
	selfID        string
	conversations map[string]*domain.Conversation
	likedYou      []domain.LikedYouEntry
	discovery     []domain.Candidate
	typingTimers  map[string]*time.Timer
	subs          map[int]func()
	nextSub       int
	typingTTL     time.Duration
	dedupWindow   time.Duration
}

// NewConversationStore create ConversationStore, zero options fall back
// to production values (5s typing TTL, 15s dedup window)
func NewConversationStore(opts StoreOptions) *ConversationStore {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = defaultTypingTTL
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = defaultDedupWindow
	}
	return &ConversationStore{
		conversations: make(map[string]*domain.Conversation),
		typingTimers:  make(map[string]*time.Timer),
		subs:          make(map[int]func()),
		typingTTL:     opts.TypingTTL,
		dedupWindow:   opts.DedupWindow,
	}
}

// SetSelfID set the signed-in user id, call once at session start
func (s *ConversationStore) SetSelfID(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = userID
}

// SelfID current signed-in user id
func (s *ConversationStore) SelfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

// Subscribe register a mutation listener.
// Returned func unsubscribes, consumers must call it on teardown.
func (s *ConversationStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close stop every timer and drop all listeners, used on logout
func (s *ConversationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for matchID, t := range s.typingTimers {
		t.Stop()
		delete(s.typingTimers, matchID)
	}
	s.subs = make(map[int]func())
	s.conversations = make(map[string]*domain.Conversation)
	s.likedYou = nil
	s.discovery = nil
	s.selfID = ""
}

// UpsertConversation create the conversation or refresh its header
// fields, existing messages are kept
func (s *ConversationStore) UpsertConversation(conv domain.Conversation) {
	s.mu.Lock()
	existing, ok := s.conversations[conv.MatchID]
	if !ok {
		inserted := &domain.Conversation{
			MatchID:      conv.MatchID,
			OtherUserID:  conv.OtherUserID,
			LastActivity: conv.LastActivity,
		}
		s.conversations[conv.MatchID] = inserted
		for _, msg := range conv.Messages {
			s.applyMessageLocked(inserted, msg)
		}
	} else {
		if conv.OtherUserID != "" {
			existing.OtherUserID = conv.OtherUserID
		}
		if conv.LastActivity > existing.LastActivity {
			existing.LastActivity = conv.LastActivity
		}
		for _, msg := range conv.Messages {
			s.applyMessageLocked(existing, msg)
		}
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// ApplyRemoteMessage reconcile one server message into its conversation
func (s *ConversationStore) ApplyRemoteMessage(msg domain.Message) {
	s.mu.Lock()
	conv := s.ensureLocked(msg.MatchID)
	s.applyMessageLocked(conv, msg)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// SeedMessages reconcile a REST page of messages, one notification total
func (s *ConversationStore) SeedMessages(matchID string, msgs []domain.Message) {
	s.mu.Lock()
	conv := s.ensureLocked(matchID)
	for _, msg := range msgs {
		msg.MatchID = matchID
		s.applyMessageLocked(conv, msg)
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// InsertProvisional add a locally issued pending message
func (s *ConversationStore) InsertProvisional(msg domain.Message) {
	s.mu.Lock()
	conv := s.ensureLocked(msg.MatchID)
	s.insertOrderedLocked(conv, msg)
	if msg.Timestamp > conv.LastActivity {
		conv.LastActivity = msg.Timestamp
	}
	conv.Unread = s.unreadLocked(conv)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// ResolveProvisional replace the provisional with the server-confirmed
// record in place, keeping list position. When the provisional is
// already gone (server echo won the race) the confirmed record is
// reconciled normally; when the echo already sits in the list under the
// confirmed id, the provisional is dropped instead, one record per
// server id. Return true when the provisional was found.
func (s *ConversationStore) ResolveProvisional(matchID, provisionalID string, confirmed domain.Message) bool {
	s.mu.Lock()
	conv, ok := s.conversations[matchID]
	found := false
	if ok {
		if i := indexByID(conv.Messages, provisionalID); i >= 0 {
			if indexByID(conv.Messages, confirmed.ID) >= 0 {
				conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			} else {
				if confirmed.Reactions == nil {
					confirmed.Reactions = conv.Messages[i].Reactions
				}
				conv.Messages[i] = confirmed
			}
			found = true
		} else {
			s.applyMessageLocked(conv, confirmed)
		}
		if confirmed.Timestamp > conv.LastActivity {
			conv.LastActivity = confirmed.Timestamp
		}
		conv.Unread = s.unreadLocked(conv)
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
	return found
}

// RemoveMessage drop one message, used for optimistic rollback
func (s *ConversationStore) RemoveMessage(matchID, messageID string) bool {
	s.mu.Lock()
	conv, ok := s.conversations[matchID]
	removed := false
	if ok {
		if i := indexByID(conv.Messages, messageID); i >= 0 {
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			conv.Unread = s.unreadLocked(conv)
			removed = true
		}
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
	return removed
}

// ApplyReaction toggle one user's emoji on one message, idempotent
func (s *ConversationStore) ApplyReaction(matchID, messageID, emoji, userID string, added bool) {
	s.mu.Lock()
	if conv, ok := s.conversations[matchID]; ok {
		if i := indexByID(conv.Messages, messageID); i >= 0 {
			msg := &conv.Messages[i]
			if msg.Reactions == nil {
				msg.Reactions = make(map[string][]string)
			}
			users := msg.Reactions[emoji]
			if added && !pkg.Contains(users, userID) {
				msg.Reactions[emoji] = append(users, userID)
			} else if !added {
				users = pkg.Remove(users, userID)
				if len(users) == 0 {
					delete(msg.Reactions, emoji)
				} else {
					msg.Reactions[emoji] = users
				}
			}
		}
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// SetReactions replace a message's reaction map with server truth
func (s *ConversationStore) SetReactions(matchID, messageID string, reactions map[string][]string) {
	s.mu.Lock()
	if conv, ok := s.conversations[matchID]; ok {
		if i := indexByID(conv.Messages, messageID); i >= 0 {
			conv.Messages[i].Reactions = domain.CloneReactions(reactions)
		}
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// HasReaction check one user's emoji currently present on a message
func (s *ConversationStore) HasReaction(matchID, messageID, emoji, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[matchID]
	if !ok {
		return false
	}
	i := indexByID(conv.Messages, messageID)
	if i < 0 {
		return false
	}
	return pkg.Contains(conv.Messages[i].Reactions[emoji], userID)
}

// ApplyTyping set the conversation typing session. isTyping true starts
// or refreshes the expiry timer, false clears it immediately.
func (s *ConversationStore) ApplyTyping(matchID, userID, userName string, isTyping bool) {
	s.mu.Lock()
	conv := s.ensureLocked(matchID)
	conv.Typing = domain.TypingSession{
		UserID:   userID,
		UserName: userName,
		IsTyping: isTyping,
	}
	if t, ok := s.typingTimers[matchID]; ok {
		t.Stop()
		delete(s.typingTimers, matchID)
	}
	if isTyping {
		s.typingTimers[matchID] = time.AfterFunc(s.typingTTL, func() {
			s.expireTyping(matchID, userID)
		})
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// expireTyping timer callback, no typing-stop arrived within the TTL
func (s *ConversationStore) expireTyping(matchID, userID string) {
	s.mu.Lock()
	conv, ok := s.conversations[matchID]
	if !ok || !conv.Typing.IsTyping || conv.Typing.UserID != userID {
		s.mu.Unlock()
		return
	}
	conv.Typing.IsTyping = false
	delete(s.typingTimers, matchID)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// ApplyReadMarkers apply a messages-read event. Reader equal to the
// local user marks inbound messages read (unread drops to zero);
// reader equal to the counterpart flips the read receipt on the local
// user's own sent messages.
func (s *ConversationStore) ApplyReadMarkers(matchID, readerID string) {
	s.mu.Lock()
	if conv, ok := s.conversations[matchID]; ok {
		for i := range conv.Messages {
			if readerID == s.selfID {
				if conv.Messages[i].SenderID != s.selfID {
					conv.Messages[i].IsRead = true
				}
			} else {
				if conv.Messages[i].SenderID == s.selfID {
					conv.Messages[i].IsRead = true
				}
			}
		}
		conv.Unread = s.unreadLocked(conv)
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// RemoveConversation drop the conversation, used on unmatch
func (s *ConversationStore) RemoveConversation(matchID string) {
	s.mu.Lock()
	if t, ok := s.typingTimers[matchID]; ok {
		t.Stop()
		delete(s.typingTimers, matchID)
	}
	delete(s.conversations, matchID)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// ApplyLikedYou apply a liked-you-update add/remove
func (s *ConversationStore) ApplyLikedYou(change domain.LikedYouChange) {
	s.mu.Lock()
	switch change.Action {
	case "add":
		exists := false
		for _, e := range s.likedYou {
			if e.UserID == change.UserID {
				exists = true
				break
			}
		}
		if !exists {
			s.likedYou = append(s.likedYou, domain.LikedYouEntry{
				ActionID: change.ActionID,
				UserID:   change.UserID,
				Reason:   change.Reason,
			})
		}
	case "remove":
		out := s.likedYou[:0]
		for _, e := range s.likedYou {
			if e.UserID != change.UserID && (change.ActionID == "" || e.ActionID != change.ActionID) {
				out = append(out, e)
			}
		}
		s.likedYou = out
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// SetDiscovery replace the discovery deck with a fresh page
func (s *ConversationStore) SetDiscovery(candidates []domain.Candidate) {
	s.mu.Lock()
	s.discovery = append([]domain.Candidate(nil), candidates...)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// RemoveCandidate optimistically drop a target from the discovery deck
// and the liked-you list. Returns what was removed so a rollback can
// restore it.
func (s *ConversationStore) RemoveCandidate(userID string) (*domain.Candidate, *domain.LikedYouEntry) {
	s.mu.Lock()
	var candidate *domain.Candidate
	var liked *domain.LikedYouEntry
	for i, c := range s.discovery {
		if c.UserID == userID {
			removed := c
			candidate = &removed
			s.discovery = append(s.discovery[:i], s.discovery[i+1:]...)
			break
		}
	}
	for i, e := range s.likedYou {
		if e.UserID == userID {
			removed := e
			liked = &removed
			s.likedYou = append(s.likedYou[:i], s.likedYou[i+1:]...)
			break
		}
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
	return candidate, liked
}

// RestoreCandidate undo an optimistic removal after a failed swipe
func (s *ConversationStore) RestoreCandidate(candidate *domain.Candidate, liked *domain.LikedYouEntry) {
	s.mu.Lock()
	if candidate != nil {
		s.discovery = append(s.discovery, *candidate)
	}
	if liked != nil {
		s.likedYou = append(s.likedYou, *liked)
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	fireAll(subs)
}

// Conversations snapshot of every conversation, most recent first
func (s *ConversationStore) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity > out[j].LastActivity
	})
	return out
}

// Conversation snapshot of one conversation
func (s *ConversationStore) Conversation(matchID string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[matchID]
	if !ok {
		return domain.Conversation{}, false
	}
	return conv.Clone(), true
}

// UnreadByConversation derived unread counts, see invariant on Unread
func (s *ConversationStore) UnreadByConversation() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.conversations))
	for matchID, conv := range s.conversations {
		out[matchID] = s.unreadLocked(conv)
	}
	return out
}

// LikedYou snapshot of the liked-you list
func (s *ConversationStore) LikedYou() []domain.LikedYouEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LikedYouEntry(nil), s.likedYou...)
}

// Discovery snapshot of the discovery deck
func (s *ConversationStore) Discovery() []domain.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Candidate(nil), s.discovery...)
}

// ---- internals, caller holds s.mu ----

func (s *ConversationStore) ensureLocked(matchID string) *domain.Conversation {
	conv, ok := s.conversations[matchID]
	if !ok {
		conv = &domain.Conversation{MatchID: matchID}
		s.conversations[matchID] = conv
	}
	return conv
}

// applyMessageLocked reconciliation core: same server id supersedes in
// place; an own-sender echo supersedes a matching provisional in place;
// everything else inserts ordered by timestamp.
func (s *ConversationStore) applyMessageLocked(conv *domain.Conversation, msg domain.Message) {
	if msg.Delivery == "" {
		msg.Delivery = domain.DeliverySent
	}
	if i := indexByID(conv.Messages, msg.ID); i >= 0 {
		if msg.Reactions == nil {
			msg.Reactions = conv.Messages[i].Reactions
		}
		conv.Messages[i] = msg
	} else if i := s.provisionalMatchLocked(conv, msg); i >= 0 {
		conv.Messages[i] = msg
	} else {
		s.insertOrderedLocked(conv, msg)
	}
	if msg.Timestamp > conv.LastActivity {
		conv.LastActivity = msg.Timestamp
	}
	conv.Unread = s.unreadLocked(conv)
}

// provisionalMatchLocked find a pending message the incoming record is
// the server echo of: same author (the local user), same content,
// timestamps within the dedup window
func (s *ConversationStore) provisionalMatchLocked(conv *domain.Conversation, msg domain.Message) int {
	if msg.SenderID == "" || msg.SenderID != s.selfID {
		return -1
	}
	for i, m := range conv.Messages {
		if !m.IsProvisional() || m.SenderID != msg.SenderID || m.Content != msg.Content {
			continue
		}
		delta := msg.Timestamp - m.Timestamp
		if delta < 0 {
			delta = -delta
		}
		if time.Duration(delta)*time.Millisecond <= s.dedupWindow {
			return i
		}
	}
	return -1
}

// insertOrderedLocked keep messages sorted by timestamp, equal
// timestamps keep arrival order
func (s *ConversationStore) insertOrderedLocked(conv *domain.Conversation, msg domain.Message) {
	idx := len(conv.Messages)
	for idx > 0 && conv.Messages[idx-1].Timestamp > msg.Timestamp {
		idx--
	}
	conv.Messages = append(conv.Messages, domain.Message{})
	copy(conv.Messages[idx+1:], conv.Messages[idx:])
	conv.Messages[idx] = msg
}

func (s *ConversationStore) unreadLocked(conv *domain.Conversation) int {
	n := 0
	for _, m := range conv.Messages {
		if m.SenderID != s.selfID && !m.IsRead {
			n++
		}
	}
	return n
}

func (s *ConversationStore) subscriberListLocked() []func() {
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func fireAll(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}

func indexByID(msgs []domain.Message, id string) int {
	if id == "" {
		return -1
	}
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
