package app

import (
	"context"

	"match_sync_service/internal/sync/domain"
	"match_sync_service/internal/sync/repository"

	"github.com/stretchr/testify/mock"
)

// MockMatchAPI Mock MatchAPI
type MockMatchAPI struct {
	mock.Mock
}

// FetchMatches moke fetch match list
func (m *MockMatchAPI) FetchMatches(ctx context.Context) ([]domain.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FetchMessages moke fetch message page
func (m *MockMatchAPI) FetchMessages(ctx context.Context, matchID string, page, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, matchID, page, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// SendMessage moke send message
func (m *MockMatchAPI) SendMessage(ctx context.Context, matchID, content string, messageType domain.MessageType) (*domain.Message, error) {
	args := m.Called(ctx, matchID, content, messageType)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkAsRead moke mark conversation read
func (m *MockMatchAPI) MarkAsRead(ctx context.Context, matchID string) error {
	args := m.Called(ctx, matchID)
	return args.Error(0)
}

// Swipe moke like/pass target
func (m *MockMatchAPI) Swipe(ctx context.Context, targetID string, kind domain.SwipeKind) (*repository.SwipeResult, error) {
	args := m.Called(ctx, targetID, kind)
	if args.Get(0) != nil {
		return args.Get(0).(*repository.SwipeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// FetchDiscovery moke fetch discovery page
func (m *MockMatchAPI) FetchDiscovery(ctx context.Context, page int, exclude []string, filter repository.DiscoveryFilter) ([]domain.Candidate, error) {
	args := m.Called(ctx, page, exclude, filter)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Candidate), args.Error(1)
	}
	return nil, args.Error(1)
}
