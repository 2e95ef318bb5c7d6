package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"match_sync_service/internal/sync/domain"
	errprocess "match_sync_service/pkg/err"
	"match_sync_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
)

// outEvent outbound wire envelope
type outEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Manager owns the lifecycle of the one realtime connection: connect,
// reconnect with bounded backoff, disconnect. Connect and Disconnect
// return immediately, outcomes reach callers through state listeners.
type Manager struct {
	socketURL   string
	dialer      Dialer
	registry    *SubscriptionRegistry
	maxAttempts int
	baseDelay   time.Duration

	mu        sync.Mutex
	wmu       sync.Mutex // gorilla conns allow one writer at a time
	state     domain.ConnectionState
	attempts  int
	lastErr   error
	userID    string
	sock      Socket
	gen       int // connection generation, stale goroutines exit
	active    map[string]struct{}
	stateSubs map[int]func(domain.ConnectionInfo)
	nextSub   int
	onEvent   func(domain.RawEvent)
}

// NewManager create Manager. maxAttempts/baseDelay zero values fall
// back to the production policy (5 attempts, 1s base).
func NewManager(socketURL string, dialer Dialer, registry *SubscriptionRegistry, maxAttempts int, baseDelay time.Duration) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Manager{
		socketURL:   socketURL,
		dialer:      dialer,
		registry:    registry,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		state:       domain.Disconnected,
		active:      make(map[string]struct{}),
		stateSubs:   make(map[int]func(domain.ConnectionInfo)),
	}
}

// Registry expose the subscription registry
func (m *Manager) Registry() *SubscriptionRegistry {
	return m.registry
}

// OnEvent set the inbound raw event handler, call before Connect
func (m *Manager) OnEvent(handler func(domain.RawEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = handler
}

// OnStateChange register a connection state listener.
// Returned func unsubscribes, consumers must call it on teardown.
func (m *Manager) OnStateChange(fn func(domain.ConnectionInfo)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.stateSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateSubs, id)
	}
}

// Info current connection snapshot
func (m *Manager) Info() domain.ConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Manager) infoLocked() domain.ConnectionInfo {
	info := domain.ConnectionInfo{
		State:    m.state,
		Attempts: m.attempts,
	}
	if m.lastErr != nil {
		info.LastError = m.lastErr.Error()
	}
	return info
}

// Connect establish the connection scoped to userID.
// Idempotent while already connected or connecting for the same user.
func (m *Manager) Connect(userID string) {
	m.mu.Lock()
	if m.userID == userID && m.state != domain.Disconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	m.userID = userID
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
	}
	m.mu.Unlock()

	m.registry.Join(UserRoom(userID))
	m.setState(domain.Connecting, 0, nil)
	go m.run(gen, userID)
}

// Disconnect tear down the connection, desired rooms and listeners
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
	}
	m.state = domain.Disconnected
	m.attempts = 0
	m.lastErr = nil
	m.userID = ""
	m.active = make(map[string]struct{})
	subs := m.subscriberListLocked()
	info := m.infoLocked()
	m.stateSubs = make(map[int]func(domain.ConnectionInfo))
	m.onEvent = nil
	m.mu.Unlock()

	m.registry.Clear()
	for _, fn := range subs {
		fn(info)
	}
}

// JoinRoom mark room desired and send the join while connected.
// Queued joins are flushed on the next (re)connect.
func (m *Manager) JoinRoom(roomID string) {
	m.registry.Join(roomID)
	m.mu.Lock()
	connected := m.state == domain.Connected
	m.mu.Unlock()
	if connected {
		m.sendJoin(roomID)
	}
}

// LeaveRoom drop room from the desired set and notify the server
func (m *Manager) LeaveRoom(roomID string) {
	m.registry.Leave(roomID)
	m.mu.Lock()
	delete(m.active, roomID)
	connected := m.state == domain.Connected
	m.mu.Unlock()
	if connected && strings.HasPrefix(roomID, "match:") {
		if err := m.Emit(domain.ControlLeaveMatchRoom, map[string]string{
			"match_id": strings.TrimPrefix(roomID, "match:"),
		}); err != nil {
			logger.Log.Warn("leave room emit failed", zap.String("room", roomID))
		}
	}
}

// Emit send one outbound control event while connected
func (m *Manager) Emit(event string, payload interface{}) error {
	m.mu.Lock()
	sock := m.sock
	connected := m.state == domain.Connected
	m.mu.Unlock()
	if !connected || sock == nil {
		return errprocess.SetKind(errprocess.KindTransport, "emit while not connected: "+event, nil)
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()
	return sock.WriteJSON(outEvent{Event: event, Payload: payload})
}

// run dial loop: backoff retries, then serve reads until the socket
// drops, then start over. Exits when the generation goes stale or the
// attempt budget is exhausted.
func (m *Manager) run(gen int, userID string) {
	attempt := 0
	for {
		if m.stale(gen) {
			return
		}

		sock, err := m.dialer.Dial(context.Background(), m.dialURL(userID))
		if err != nil {
			attempt++
			if attempt >= m.maxAttempts {
				logger.Log.Errorf("realtime connect gave up:", err, zap.Int("attempts", attempt))
				m.setState(domain.Disconnected, attempt, err)
				return
			}
			m.setState(domain.Connecting, attempt, err)
			time.Sleep(m.backoff(attempt))
			continue
		}
		attempt = 0

		if !m.adopt(gen, sock) {
			sock.Close()
			return
		}
		m.setState(domain.Connected, 0, nil)
		m.resubscribe()
		m.readLoop(gen, sock)

		if m.stale(gen) {
			return
		}
		m.setState(domain.Connecting, 0, nil)
	}
}

func (m *Manager) dialURL(userID string) string {
	return m.socketURL + "?user_id=" + url.QueryEscape(userID)
}

// backoff delay before retry n (1-based): base * 2^(n-1)
func (m *Manager) backoff(attempt int) time.Duration {
	d := m.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (m *Manager) stale(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != gen
}

// adopt install the fresh socket, reset the active room view
func (m *Manager) adopt(gen int, sock Socket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.sock = sock
	m.active = make(map[string]struct{})
	return true
}

// resubscribe replay every desired room join on the new connection
func (m *Manager) resubscribe() {
	for _, roomID := range m.registry.Desired() {
		m.sendJoin(roomID)
	}
}

// sendJoin emit the join for roomID at most once per connection.
// A failed write unmarks the room so a later join or reconnect retries it.
func (m *Manager) sendJoin(roomID string) {
	m.mu.Lock()
	if _, ok := m.active[roomID]; ok {
		m.mu.Unlock()
		return
	}
	m.active[roomID] = struct{}{}
	m.mu.Unlock()

	var err error
	if strings.HasPrefix(roomID, "user:") {
		err = m.Emit(domain.ControlJoinUserRoom, map[string]string{
			"user_id": strings.TrimPrefix(roomID, "user:"),
		})
	} else {
		err = m.Emit(domain.ControlJoinMatchRoom, map[string]string{
			"match_id": strings.TrimPrefix(roomID, "match:"),
		})
	}
	if err != nil {
		m.mu.Lock()
		delete(m.active, roomID)
		m.mu.Unlock()
		logger.Log.Warn("join emit failed", zap.String("room", roomID))
	}
}

// readLoop deliver inbound events in arrival order until the socket drops
func (m *Manager) readLoop(gen int, sock Socket) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			sock.Close()
			if !m.stale(gen) {
				logger.Log.Errorf("realtime read error:", err)
			}
			return
		}

		var raw domain.RawEvent
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.Log.Warn("drop unparsable frame", zap.Error(err))
			continue
		}

		m.mu.Lock()
		handler := m.onEvent
		m.mu.Unlock()
		if handler != nil {
			handler(raw)
		}
	}
}

func (m *Manager) subscriberListLocked() []func(domain.ConnectionInfo) {
	subs := make([]func(domain.ConnectionInfo), 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		subs = append(subs, fn)
	}
	return subs
}

// setState transition and notify listeners outside the lock
func (m *Manager) setState(state domain.ConnectionState, attempts int, err error) {
	m.mu.Lock()
	m.state = state
	m.attempts = attempts
	m.lastErr = err
	info := m.infoLocked()
	subs := m.subscriberListLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(info)
	}
}
