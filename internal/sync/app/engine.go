package app

import (
	"context"
	"sync"
	"time"

	"match_sync_service/internal/sync/domain"
	"match_sync_service/internal/sync/repository"
	"match_sync_service/internal/sync/transport"
	errprocess "match_sync_service/pkg/err"
	"match_sync_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	// typingIdle silence after the last keystroke before typing-stop
	typingIdle = 3 * time.Second
)

// SyncEngine owns the sync session: one transport connection, one
// store, explicit Start on sign-in and Stop on logout. Explicitly
// constructed and injected, never a package singleton.
type SyncEngine struct {
	manager    *transport.Manager
	normalizer *Normalizer
	store      *ConversationStore
	api        repository.MatchAPI

	mu         sync.Mutex
	started    bool
	userID     string
	unsubState func()
	typingOut  map[string]*time.Timer
}

// NewSyncEngine create SyncEngine
func NewSyncEngine(manager *transport.Manager, store *ConversationStore, api repository.MatchAPI) *SyncEngine {
	return &SyncEngine{
		manager:    manager,
		normalizer: NewNormalizer(),
		store:      store,
		api:        api,
		typingOut:  make(map[string]*time.Timer),
	}
}

// Started report a session currently running
func (e *SyncEngine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Start begin the session for userID: connect the transport, join the
// user room and seed the store from the match list. Idempotent while a
// session for the same user runs. Auth failure aborts the start.
func (e *SyncEngine) Start(ctx context.Context, userID string) error {
	e.mu.Lock()
	if e.started {
		same := e.userID == userID
		e.mu.Unlock()
		if same {
			return nil
		}
		return errprocess.Set("sync session already started for another user")
	}
	e.started = true
	e.userID = userID
	e.mu.Unlock()

	e.store.SetSelfID(userID)
	e.manager.OnEvent(e.handleRaw)
	unsub := e.manager.OnStateChange(func(info domain.ConnectionInfo) {
		logger.Log.Info("connection state",
			zap.String("state", string(info.State)),
			zap.Int("attempts", info.Attempts),
			zap.String("last_error", info.LastError),
		)
	})
	e.mu.Lock()
	e.unsubState = unsub
	e.mu.Unlock()

	e.manager.Connect(userID)

	matches, err := e.api.FetchMatches(ctx)
	if err != nil {
		if errprocess.KindOf(err) == errprocess.KindAuth {
			e.Stop()
			return err
		}
		// push events refill the match list later, start anyway
		logger.Log.Errorf("match list pull failed:", err)
		return nil
	}
	for _, conv := range matches {
		e.store.UpsertConversation(conv)
	}
	return nil
}

// Stop tear the session down: transport, timers, listeners, store.
// Safe to call twice.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.userID = ""
	for matchID, t := range e.typingOut {
		t.Stop()
		delete(e.typingOut, matchID)
	}
	unsub := e.unsubState
	e.unsubState = nil
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	e.manager.Disconnect()
	e.store.Close()
}

// Reconnect re-dial after the retry budget was exhausted, e.g. on app
// foreground. No-op while connected or connecting, or without a session.
func (e *SyncEngine) Reconnect() {
	e.mu.Lock()
	started := e.started
	userID := e.userID
	e.mu.Unlock()
	if started && userID != "" {
		e.manager.Connect(userID)
	}
}

// handleRaw one inbound event: normalize, then dispatch to the store.
// Normalization failures are already logged, the event is dropped.
func (e *SyncEngine) handleRaw(raw domain.RawEvent) {
	ev, err := e.normalizer.Normalize(raw)
	if err != nil {
		return
	}

	switch ev.Kind {
	case domain.EventNewMessage:
		e.store.ApplyRemoteMessage(*ev.Message)
	case domain.EventMessageReaction:
		e.store.SetReactions(ev.Reaction.MatchID, ev.Reaction.MessageID, ev.Reaction.Reactions)
	case domain.EventUserTyping:
		e.store.ApplyTyping(ev.Typing.MatchID, ev.Typing.UserID, ev.Typing.UserName, ev.Typing.IsTyping)
	case domain.EventMessagesRead:
		e.store.ApplyReadMarkers(ev.Read.MatchID, ev.Read.ReaderID)
	case domain.EventNewMatch:
		e.store.UpsertConversation(domain.Conversation{
			MatchID:      ev.Match.MatchID,
			OtherUserID:  ev.Match.OtherUserID,
			LastActivity: time.Now().UnixMilli(),
		})
		e.manager.JoinRoom(transport.MatchRoom(ev.Match.MatchID))
	case domain.EventMatchRemoved:
		e.store.RemoveConversation(ev.Match.MatchID)
		e.manager.LeaveRoom(transport.MatchRoom(ev.Match.MatchID))
	case domain.EventLikedYou:
		e.store.ApplyLikedYou(*ev.LikedYou)
	}
}

// OpenConversation join the match room, pull the newest message page
// and mark the conversation read
func (e *SyncEngine) OpenConversation(ctx context.Context, matchID string) error {
	e.manager.JoinRoom(transport.MatchRoom(matchID))

	msgs, err := e.api.FetchMessages(ctx, matchID, 1, defaultPageSize)
	if err != nil {
		return err
	}
	e.store.SeedMessages(matchID, msgs)

	if err := e.api.MarkAsRead(ctx, matchID); err != nil {
		logger.Log.Errorf("mark as read failed:", err, zap.String("match", matchID))
	} else {
		e.store.ApplyReadMarkers(matchID, e.store.SelfID())
	}
	return nil
}

// LoadOlderMessages pull one more history page into the store
func (e *SyncEngine) LoadOlderMessages(ctx context.Context, matchID string, page int) (int, error) {
	msgs, err := e.api.FetchMessages(ctx, matchID, page, defaultPageSize)
	if err != nil {
		return 0, err
	}
	e.store.SeedMessages(matchID, msgs)
	return len(msgs), nil
}

// CloseConversation release the room subscription and the typing timer
// of a closed conversation view
func (e *SyncEngine) CloseConversation(matchID string) {
	e.mu.Lock()
	if t, ok := e.typingOut[matchID]; ok {
		t.Stop()
		delete(e.typingOut, matchID)
	}
	e.mu.Unlock()
	e.manager.LeaveRoom(transport.MatchRoom(matchID))
}

// NotifyTyping debounced outbound typing: first keystroke emits
// typing-start, the idle timer emits typing-stop
func (e *SyncEngine) NotifyTyping(matchID string) {
	e.mu.Lock()
	t, active := e.typingOut[matchID]
	if active {
		t.Stop()
	}
	e.typingOut[matchID] = time.AfterFunc(typingIdle, func() {
		e.stopTyping(matchID)
	})
	e.mu.Unlock()

	if !active {
		if err := e.manager.Emit(domain.ControlTypingStart, map[string]string{"match_id": matchID}); err != nil {
			logger.Log.Warn("typing-start emit failed", zap.String("match", matchID))
		}
	}
}

func (e *SyncEngine) stopTyping(matchID string) {
	e.mu.Lock()
	delete(e.typingOut, matchID)
	e.mu.Unlock()
	if err := e.manager.Emit(domain.ControlTypingStop, map[string]string{"match_id": matchID}); err != nil {
		logger.Log.Warn("typing-stop emit failed", zap.String("match", matchID))
	}
}

// SetOnlineStatus push the online flag over the socket
func (e *SyncEngine) SetOnlineStatus(online bool) error {
	return e.manager.Emit(domain.ControlOnlineStatus, map[string]bool{"online": online})
}

// Connection current transport snapshot
func (e *SyncEngine) Connection() domain.ConnectionInfo {
	return e.manager.Info()
}
