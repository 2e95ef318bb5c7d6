package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"match_sync_service/internal/sync/domain"
	"match_sync_service/internal/sync/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// chanSocket in-memory transport.Socket for engine tests
type chanSocket struct {
	in        chan []byte
	closeOnce sync.Once

	mu     sync.Mutex
	writes []string
}

func (f *chanSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil, errors.New("socket closed")
	}
	return 1, data, nil
}

func (f *chanSocket) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, string(data))
	f.mu.Unlock()
	return nil
}

func (f *chanSocket) Close() error {
	f.closeOnce.Do(func() { close(f.in) })
	return nil
}

func (f *chanSocket) wrote(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.writes {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

type chanDialer struct {
	mu    sync.Mutex
	fails int
	socks []*chanSocket
}

func (d *chanDialer) Dial(_ context.Context, _ string) (transport.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("dial refused")
	}
	s := &chanSocket{in: make(chan []byte, 16)}
	d.socks = append(d.socks, s)
	return s, nil
}

func (d *chanDialer) socket(i int) *chanSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socks[i]
}

type engineFixture struct {
	engine  *SyncEngine
	store   *ConversationStore
	manager *transport.Manager
	dialer  *chanDialer
	api     *MockMatchAPI
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	dialer := &chanDialer{}
	manager := transport.NewManager("ws://realtime.test/socket", dialer,
		transport.NewSubscriptionRegistry(), 5, time.Millisecond)
	store := NewConversationStore(StoreOptions{})
	api := new(MockMatchAPI)
	return &engineFixture{
		engine:  NewSyncEngine(manager, store, api),
		store:   store,
		manager: manager,
		dialer:  dialer,
		api:     api,
	}
}

func (fx *engineFixture) push(t *testing.T, frame string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return fx.manager.Info().State == domain.Connected
	}, time.Second, 2*time.Millisecond)
	fx.dialer.socket(0).in <- []byte(frame)
}

func TestEngine_StartSeedsMatchesAndJoinsUserRoom(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{
		{MatchID: "match-1", OtherUserID: "u2", LastActivity: 1000},
	}, nil)

	err := fx.engine.Start(context.Background(), "me")
	defer fx.engine.Stop()

	assert.NoError(t, err)
	assert.True(t, fx.engine.Started())
	assert.Equal(t, "me", fx.store.SelfID())
	assert.True(t, fx.manager.Registry().Has(transport.UserRoom("me")))

	conv, ok := fx.store.Conversation("match-1")
	assert.True(t, ok)
	assert.Equal(t, "u2", conv.OtherUserID)
}

func TestEngine_StartIdempotentSameUser(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)

	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	assert.Error(t, fx.engine.Start(context.Background(), "someone-else"))
}

func TestEngine_StartSurvivesMatchListFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return(nil, errors.New("backend down"))

	err := fx.engine.Start(context.Background(), "me")
	defer fx.engine.Stop()

	assert.NoError(t, err)
	assert.True(t, fx.engine.Started())
}

func TestEngine_InboundMessageReachesStore(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	fx.push(t, `{"event":"new-message","payload":{"matchId":"match-1","message":{"id":"m1","senderId":"u2","content":"hey","timestamp":1700000000000}}}`)

	assert.Eventually(t, func() bool {
		conv, ok := fx.store.Conversation("match-1")
		return ok && len(conv.Messages) == 1 && conv.Unread == 1
	}, time.Second, 2*time.Millisecond)
}

func TestEngine_NewMatchJoinsRoomAndUnmatchLeavesIt(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	fx.push(t, `{"event":"new-match","payload":{"matchId":"match-9","matchedUser":{"id":"u7"}}}`)
	assert.Eventually(t, func() bool {
		_, ok := fx.store.Conversation("match-9")
		return ok && fx.manager.Registry().Has(transport.MatchRoom("match-9"))
	}, time.Second, 2*time.Millisecond)

	fx.push(t, `{"event":"match-removed","payload":{"matchId":"match-9"}}`)
	assert.Eventually(t, func() bool {
		_, ok := fx.store.Conversation("match-9")
		return !ok && !fx.manager.Registry().Has(transport.MatchRoom("match-9"))
	}, time.Second, 2*time.Millisecond)
}

func TestEngine_UnknownEventDropped(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	fx.push(t, `{"event":"profile-viewed","payload":{}}`)
	fx.push(t, `{"event":"user-typing","payload":{"matchId":"match-1","userId":"u2","isTyping":true}}`)

	// the later typing event still lands, the unknown one left no trace
	assert.Eventually(t, func() bool {
		conv, ok := fx.store.Conversation("match-1")
		return ok && conv.Typing.IsTyping
	}, time.Second, 2*time.Millisecond)
	assert.Len(t, fx.store.Conversations(), 1)
}

func TestEngine_OpenConversationSeedsPageAndMarksRead(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	fx.api.On("FetchMessages", mock.Anything, "match-1", 1, defaultPageSize).Return([]domain.Message{
		{ID: "m1", SenderID: "u2", Content: "hey", Timestamp: 1000},
		{ID: "m2", SenderID: "me", Content: "hi", Timestamp: 2000},
	}, nil)
	fx.api.On("MarkAsRead", mock.Anything, "match-1").Return(nil)

	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	assert.NoError(t, fx.engine.OpenConversation(context.Background(), "match-1"))

	conv, ok := fx.store.Conversation("match-1")
	assert.True(t, ok)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, 0, conv.Unread)
	assert.True(t, fx.manager.Registry().Has(transport.MatchRoom("match-1")))
	fx.api.AssertExpectations(t)
}

func TestEngine_LoadOlderMessagesSeedsHistoryPage(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	fx.api.On("FetchMessages", mock.Anything, "match-1", 2, defaultPageSize).Return([]domain.Message{
		{ID: "m1", SenderID: "u2", Content: "older", Timestamp: 1000},
		{ID: "m2", SenderID: "u2", Content: "old", Timestamp: 2000},
	}, nil)

	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	n, err := fx.engine.LoadOlderMessages(context.Background(), "match-1", 2)

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	conv, ok := fx.store.Conversation("match-1")
	assert.True(t, ok)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, "m1", conv.Messages[0].ID)
	fx.api.AssertExpectations(t)
}

func TestEngine_LoadOlderMessagesPropagatesFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	fx.api.On("FetchMessages", mock.Anything, "match-1", 3, defaultPageSize).
		Return(nil, errors.New("backend down"))

	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	n, err := fx.engine.LoadOlderMessages(context.Background(), "match-1", 3)

	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestEngine_SetOnlineStatusEmitsControlEvent(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	assert.Eventually(t, func() bool {
		return fx.manager.Info().State == domain.Connected
	}, time.Second, 2*time.Millisecond)

	assert.NoError(t, fx.engine.SetOnlineStatus(true))
	assert.True(t, fx.dialer.socket(0).wrote(domain.ControlOnlineStatus))
}

func TestEngine_SetOnlineStatusWhileDisconnectedFails(t *testing.T) {
	fx := newEngineFixture(t)

	assert.Error(t, fx.engine.SetOnlineStatus(true))
}

func TestEngine_NotifyTypingDebounced(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))
	defer fx.engine.Stop()

	assert.Eventually(t, func() bool {
		return fx.manager.Info().State == domain.Connected
	}, time.Second, 2*time.Millisecond)

	fx.engine.NotifyTyping("match-1")
	fx.engine.NotifyTyping("match-1")
	fx.engine.NotifyTyping("match-1")

	sock := fx.dialer.socket(0)
	assert.Eventually(t, func() bool {
		return sock.wrote(domain.ControlTypingStart)
	}, time.Second, 2*time.Millisecond)

	sock.mu.Lock()
	starts := 0
	for _, w := range sock.writes {
		if strings.Contains(w, domain.ControlTypingStart) {
			starts++
		}
	}
	sock.mu.Unlock()
	assert.Equal(t, 1, starts)
}

func TestEngine_ReconnectAfterRetryBudgetExhausted(t *testing.T) {
	dialer := &chanDialer{fails: 3} // exhaust the whole budget first
	manager := transport.NewManager("ws://realtime.test/socket", dialer,
		transport.NewSubscriptionRegistry(), 3, time.Millisecond)
	store := NewConversationStore(StoreOptions{})
	api := new(MockMatchAPI)
	api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{}, nil)
	engine := NewSyncEngine(manager, store, api)

	assert.NoError(t, engine.Start(context.Background(), "me"))
	defer engine.Stop()

	assert.Eventually(t, func() bool {
		return manager.Info().State == domain.Disconnected
	}, time.Second, 2*time.Millisecond)

	engine.Reconnect()
	assert.Eventually(t, func() bool {
		return manager.Info().State == domain.Connected
	}, time.Second, 2*time.Millisecond)
}

func TestEngine_StopTearsDown(t *testing.T) {
	fx := newEngineFixture(t)
	fx.api.On("FetchMatches", mock.Anything).Return([]domain.Conversation{
		{MatchID: "match-1", OtherUserID: "u2"},
	}, nil)
	assert.NoError(t, fx.engine.Start(context.Background(), "me"))

	fx.engine.Stop()
	fx.engine.Stop() // safe to call twice

	assert.False(t, fx.engine.Started())
	assert.Empty(t, fx.store.Conversations())
	assert.Equal(t, domain.Disconnected, fx.engine.Connection().State)
	assert.Empty(t, fx.manager.Registry().Desired())
}
