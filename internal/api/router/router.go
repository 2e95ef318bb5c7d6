package router

import (
	"match_sync_service/internal/api/comm"
	"match_sync_service/internal/api/handlers"
	"match_sync_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册 bridge 相关的路由
func RegisterRoutes(app *fiber.App, h *handlers.SyncHandler) {
	app.Get("/", comm.ConnectCheck)
	app.Post("/debug", comm.DebugLogFlag)

	syncRoutes := app.Group("/sync")
	syncRoutes.Use(middlewares.SessionGate(h.Engine.Started))

	syncRoutes.Get("/connection", h.Connection)
	syncRoutes.Post("/connection/retry", h.Reconnect)
	syncRoutes.Get("/unread", h.UnreadCounts)
	syncRoutes.Get("/liked-you", h.LikedYou)
	syncRoutes.Post("/discovery", h.Discovery)
	syncRoutes.Post("/swipes", h.Swipe)
	syncRoutes.Post("/online", h.Online)

	convRoutes := syncRoutes.Group("/conversations")
	convRoutes.Get("/", h.Conversations)
	convRoutes.Get("/:id", h.Conversation)
	convRoutes.Get("/:id/messages", h.OlderMessages)
	convRoutes.Post("/:id/open", h.OpenConversation)
	convRoutes.Post("/:id/close", h.CloseConversation)
	convRoutes.Post("/:id/messages", h.SendMessage)
	convRoutes.Post("/:id/typing", h.Typing)
	convRoutes.Post("/:id/reactions", h.React)
}
