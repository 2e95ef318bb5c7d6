package app

import (
	"context"
	"time"

	"match_sync_service/internal/sync/domain"
	"match_sync_service/internal/sync/repository"
	errprocess "match_sync_service/pkg/err"
	"match_sync_service/pkg/logger"

	"go.uber.org/zap"
)

// OptimisticUseCase issues locally originated mutations: apply to the
// store first, then commit or roll back against the REST answer.
type OptimisticUseCase struct {
	store         *ConversationStore
	api           repository.MatchAPI
	swipeRollback bool
}

// NewOptimisticUseCase create OptimisticUseCase. swipeRollback restores
// optimistically removed cards when the backing call fails; production
// runs with false (best-effort, the deck refreshes on the next pull).
func NewOptimisticUseCase(store *ConversationStore, api repository.MatchAPI, swipeRollback bool) *OptimisticUseCase {
	return &OptimisticUseCase{
		store:         store,
		api:           api,
		swipeRollback: swipeRollback,
	}
}

// SendMessage insert a provisional message, issue the REST send, then
// supersede with the confirmed record or remove the provisional.
// A send never leaves a permanently pending message behind.
func (uc *OptimisticUseCase) SendMessage(ctx context.Context, matchID, content string) (domain.Message, error) {
	provisional := domain.Message{
		ID:          domain.NewProvisionalID(),
		MatchID:     matchID,
		SenderID:    uc.store.SelfID(),
		Content:     content,
		MessageType: domain.MessageTypeText,
		Timestamp:   time.Now().UnixMilli(),
		Delivery:    domain.DeliveryPending,
	}
	uc.store.InsertProvisional(provisional)

	confirmed, err := uc.api.SendMessage(ctx, matchID, content, domain.MessageTypeText)
	if err != nil {
		uc.store.RemoveMessage(matchID, provisional.ID)
		if errprocess.KindOf(err) == errprocess.KindAuth {
			return domain.Message{}, err
		}
		return domain.Message{}, errprocess.SetKind(errprocess.KindOptimisticCommit, "send message failed", err)
	}

	confirmed.Delivery = domain.DeliverySent
	uc.store.ResolveProvisional(matchID, provisional.ID, *confirmed)
	return *confirmed, nil
}

// ToggleReaction flip the local user's emoji on a message. Applied
// optimistically; server truth arrives back as a message-reaction
// event and supersedes. Toggling twice returns to the original state.
func (uc *OptimisticUseCase) ToggleReaction(matchID, messageID, emoji string) {
	userID := uc.store.SelfID()
	added := !uc.store.HasReaction(matchID, messageID, emoji, userID)
	uc.store.ApplyReaction(matchID, messageID, emoji, userID, added)
}

// Swipe like/pass/super-like a target: the card leaves the local deck
// immediately, then the REST call runs. Failure is logged; rollback
// only under the explicit policy flag.
func (uc *OptimisticUseCase) Swipe(ctx context.Context, targetID string, kind domain.SwipeKind) (*repository.SwipeResult, error) {
	candidate, liked := uc.store.RemoveCandidate(targetID)

	result, err := uc.api.Swipe(ctx, targetID, kind)
	if err != nil {
		logger.Log.Errorf("swipe failed:", err, zap.String("target", targetID), zap.String("kind", string(kind)))
		if uc.swipeRollback {
			uc.store.RestoreCandidate(candidate, liked)
		}
		if errprocess.KindOf(err) == errprocess.KindAuth {
			return nil, err
		}
		return nil, errprocess.SetKind(errprocess.KindOptimisticCommit, "swipe failed", err)
	}
	return result, nil
}

// LoadDiscovery pull a discovery page, excluding already swiped targets
func (uc *OptimisticUseCase) LoadDiscovery(ctx context.Context, page int, exclude []string, filter repository.DiscoveryFilter) ([]domain.Candidate, error) {
	candidates, err := uc.api.FetchDiscovery(ctx, page, exclude, filter)
	if err != nil {
		return nil, err
	}
	uc.store.SetDiscovery(candidates)
	return candidates, nil
}
