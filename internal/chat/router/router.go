package router

import (
	"chat_core_service/internal/chat/app"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册聊天相关的路由
func RegisterRoutes(r *fiber.App, h *app.ChatHTTPHandler) {
	conv := r.Group("/conversations")
	conv.Post("/private", h.CreatePrivate)
	conv.Post("/group", h.CreateGroup)
	conv.Get("/", h.ListConversations)
	conv.Get("/:id", h.GetConversation)
	conv.Delete("/:id", h.DeleteConversation)
	conv.Post("/:id/accept", h.Accept)
	conv.Post("/:id/reject", h.Reject)

	conv.Post("/:id/members", h.AddMembers)
	conv.Delete("/:id/members/:userID", h.RemoveMember)
	conv.Put("/:id/members/:userID/role", h.UpdateMemberRole)
	conv.Put("/:id/settings", h.UpdateSettings)
	conv.Post("/:id/leave", h.LeaveGroup)
	conv.Get("/:id/group", h.GetGroupDetails)

	conv.Post("/:id/messages", h.SendMessage)
	conv.Get("/:id/messages", h.ListMessages)
	conv.Post("/:id/read", h.MarkConversationRead)
	conv.Get("/:id/unread", h.UnreadCount)

	msg := r.Group("/messages")
	msg.Put("/:id", h.EditMessage)
	msg.Delete("/:id", h.DeleteMessage)
	msg.Post("/:id/read", h.MarkMessageRead)
	msg.Get("/:id/readers", h.MessageReaders)
}
