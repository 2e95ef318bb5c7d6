package handlers

import (
	"match_sync_service/internal/sync/app"
	"match_sync_service/internal/sync/domain"
	"match_sync_service/internal/sync/repository"
	errprocess "match_sync_service/pkg/err"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler 处理 UI 进程的 bridge HTTP 请求.
// Reads are store snapshots, writes go through the optimistic use case.
type SyncHandler struct {
	Engine  *app.SyncEngine
	Store   *app.ConversationStore
	Unread  *app.UnreadAggregator
	Tracker *app.OptimisticUseCase
}

// NewSyncHandler 创建新的 SyncHandler
func NewSyncHandler(engine *app.SyncEngine, store *app.ConversationStore, unread *app.UnreadAggregator, tracker *app.OptimisticUseCase) *SyncHandler {
	return &SyncHandler{
		Engine:  engine,
		Store:   store,
		Unread:  unread,
		Tracker: tracker,
	}
}

// Conversations list every conversation, most recent first
func (h *SyncHandler) Conversations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"conversations": h.Store.Conversations()})
}

// Conversation one conversation with its messages
func (h *SyncHandler) Conversation(c *fiber.Ctx) error {
	matchID := c.Params("id")
	conv, ok := h.Store.Conversation(matchID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
	}
	return c.JSON(conv)
}

// OpenConversation join the room and pull the newest page
func (h *SyncHandler) OpenConversation(c *fiber.Ctx) error {
	matchID := c.Params("id")
	if err := h.Engine.OpenConversation(c.Context(), matchID); err != nil {
		return h.fail(c, err)
	}
	conv, _ := h.Store.Conversation(matchID)
	return c.JSON(conv)
}

// OlderMessages pull one more history page into the conversation
func (h *SyncHandler) OlderMessages(c *fiber.Ctx) error {
	page := c.QueryInt("page", 2)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid page"})
	}
	n, err := h.Engine.LoadOlderMessages(c.Context(), c.Params("id"), page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"loaded": n})
}

// CloseConversation release the room subscription of a closed view
func (h *SyncHandler) CloseConversation(c *fiber.Ctx) error {
	h.Engine.CloseConversation(c.Params("id"))
	return c.JSON(fiber.Map{"closed": true})
}

// SendMessage optimistic send, answer carries the confirmed record
func (h *SyncHandler) SendMessage(c *fiber.Ctx) error {
	type request struct {
		Content string `json:"content"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.Tracker.SendMessage(c.Context(), c.Params("id"), req.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(msg)
}

// Typing debounced outbound typing indicator
func (h *SyncHandler) Typing(c *fiber.Ctx) error {
	h.Engine.NotifyTyping(c.Params("id"))
	return c.JSON(fiber.Map{"typing": true})
}

// React toggle the local user's emoji on a message
func (h *SyncHandler) React(c *fiber.Ctx) error {
	type request struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil || req.MessageID == "" || req.Emoji == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	h.Tracker.ToggleReaction(c.Params("id"), req.MessageID, req.Emoji)
	return c.JSON(fiber.Map{"toggled": true})
}

// Swipe like/pass/super-like a discovery target
func (h *SyncHandler) Swipe(c *fiber.Ctx) error {
	type request struct {
		TargetID string `json:"target_id"`
		Kind     string `json:"kind"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil || req.TargetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	result, err := h.Tracker.Swipe(c.Context(), req.TargetID, domain.SwipeKind(req.Kind))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// Discovery pull a discovery page through the tracker
func (h *SyncHandler) Discovery(c *fiber.Ctx) error {
	type request struct {
		Page    int                        `json:"page"`
		Exclude []string                   `json:"exclude"`
		Filter  repository.DiscoveryFilter `json:"filter"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	candidates, err := h.Tracker.LoadDiscovery(c.Context(), req.Page, req.Exclude, req.Filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"candidates": candidates})
}

// LikedYou snapshot of the liked-you list
func (h *SyncHandler) LikedYou(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"liked_you": h.Store.LikedYou()})
}

// UnreadCounts derived unread projection
func (h *SyncHandler) UnreadCounts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"per_conversation":           h.Unread.PerConversationUnread(),
		"total_unread_conversations": h.Unread.TotalUnreadConversations(),
	})
}

// Connection transport state snapshot
func (h *SyncHandler) Connection(c *fiber.Ctx) error {
	return c.JSON(h.Engine.Connection())
}

// Online push the local user's online flag over the socket
func (h *SyncHandler) Online(c *fiber.Ctx) error {
	type request struct {
		Online bool `json:"online"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := h.Engine.SetOnlineStatus(req.Online); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"online": req.Online})
}

// Reconnect re-dial after the retry budget ran out, called on app foreground
func (h *SyncHandler) Reconnect(c *fiber.Ctx) error {
	h.Engine.Reconnect()
	return c.JSON(h.Engine.Connection())
}

// fail map error kinds onto bridge status codes
func (h *SyncHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway
	if errprocess.KindOf(err) == errprocess.KindAuth {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
