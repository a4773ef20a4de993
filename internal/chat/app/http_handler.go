package app

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"chat_core_service/internal/chat/domain"
	errprocess "chat_core_service/pkg/err"
)

// ChatHTTPHandler 對外 REST 介面, 只做 decode 與轉交
// 欄位驗證與授權都在 usecase 內
type ChatHTTPHandler struct {
	ConversationUC *ConversationUseCase
	GroupUC        *GroupUseCase
	MessageUC      *MessageUseCase
	ReadTrackerUC  *ReadTrackerUseCase
}

// NewChatHTTPHandler create ChatHTTPHandler
func NewChatHTTPHandler(
	conversationUC *ConversationUseCase,
	groupUC *GroupUseCase,
	messageUC *MessageUseCase,
	readTrackerUC *ReadTrackerUseCase,
) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		ConversationUC: conversationUC,
		GroupUC:        groupUC,
		MessageUC:      messageUC,
		ReadTrackerUC:  readTrackerUC,
	}
}

// statusOf 錯誤分類對應 HTTP status
func statusOf(err error) int {
	switch errprocess.KindOf(err) {
	case errprocess.KindNotFound:
		return fiber.StatusNotFound
	case errprocess.KindForbidden:
		return fiber.StatusForbidden
	case errprocess.KindConflict:
		return fiber.StatusConflict
	case errprocess.KindInvalidState:
		return fiber.StatusUnprocessableEntity
	case errprocess.KindGone:
		return fiber.StatusGone
	case errprocess.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

// callerID every route carries the acting user in the X-User-ID header
func callerID(c *fiber.Ctx) string {
	return c.Get("X-User-ID")
}

// CreatePrivate POST /conversations/private
func (h *ChatHTTPHandler) CreatePrivate(c *fiber.Ctx) error {
	var req struct {
		OtherUserID string `json:"other_user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	view, err := h.ConversationUC.CreatePrivate(c.UserContext(), callerID(c), req.OtherUserID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// CreateGroup POST /conversations/group
func (h *ChatHTTPHandler) CreateGroup(c *fiber.Ctx) error {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		MemberIDs   []string `json:"member_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	view, err := h.ConversationUC.CreateGroup(c.UserContext(), callerID(c), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// Accept POST /conversations/:id/accept
func (h *ChatHTTPHandler) Accept(c *fiber.Ctx) error {
	if err := h.ConversationUC.Accept(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reject POST /conversations/:id/reject
func (h *ChatHTTPHandler) Reject(c *fiber.Ctx) error {
	if err := h.ConversationUC.Reject(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListConversations GET /conversations
func (h *ChatHTTPHandler) ListConversations(c *fiber.Ctx) error {
	opts := domain.ListOptions{
		Limit:           c.QueryInt("limit"),
		Offset:          c.QueryInt("offset"),
		IncludeArchived: c.QueryBool("include_archived"),
		StatusFilter:    domain.ConversationStatus(c.Query("status")),
	}
	views, err := h.ConversationUC.ListForUser(c.UserContext(), callerID(c), opts)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(views)
}

// GetConversation GET /conversations/:id
func (h *ChatHTTPHandler) GetConversation(c *fiber.Ctx) error {
	view, err := h.ConversationUC.GetDetails(c.UserContext(), c.Params("id"), callerID(c), false)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

// DeleteConversation DELETE /conversations/:id
func (h *ChatHTTPHandler) DeleteConversation(c *fiber.Ctx) error {
	if err := h.ConversationUC.DeleteForUser(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddMembers POST /conversations/:id/members
func (h *ChatHTTPHandler) AddMembers(c *fiber.Ctx) error {
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	added, err := h.GroupUC.AddMembers(c.UserContext(), c.Params("id"), callerID(c), req.UserIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"added": added})
}

// RemoveMember DELETE /conversations/:id/members/:userID
func (h *ChatHTTPHandler) RemoveMember(c *fiber.Ctx) error {
	if err := h.GroupUC.RemoveMember(c.UserContext(), c.Params("id"), callerID(c), c.Params("userID")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateMemberRole PUT /conversations/:id/members/:userID/role
func (h *ChatHTTPHandler) UpdateMemberRole(c *fiber.Ctx) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	err := h.GroupUC.UpdateMemberRole(c.UserContext(), c.Params("id"), callerID(c), c.Params("userID"), domain.Role(req.Role))
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateSettings PUT /conversations/:id/settings
func (h *ChatHTTPHandler) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err := h.GroupUC.UpdateSettings(c.UserContext(), c.Params("id"), callerID(c), req.Name, req.Description); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LeaveGroup POST /conversations/:id/leave
func (h *ChatHTTPHandler) LeaveGroup(c *fiber.Ctx) error {
	if err := h.GroupUC.Leave(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetGroupDetails GET /conversations/:id/group
func (h *ChatHTTPHandler) GetGroupDetails(c *fiber.Ctx) error {
	view, err := h.GroupUC.GetDetails(c.UserContext(), c.Params("id"), callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

// SendMessage POST /conversations/:id/messages
func (h *ChatHTTPHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Content   string  `json:"content"`
		Type      string  `json:"type"`
		ReplyToID *string `json:"reply_to_id"`
		Metadata  string  `json:"metadata"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	opts := SendOptions{
		Type:      domain.MessageType(req.Type),
		ReplyToID: req.ReplyToID,
		Metadata:  req.Metadata,
	}
	view, err := h.MessageUC.Send(c.UserContext(), callerID(c), c.Params("id"), req.Content, opts)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// ListMessages GET /conversations/:id/messages
func (h *ChatHTTPHandler) ListMessages(c *fiber.Ctx) error {
	opts := domain.MessageListOptions{
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fail(c, errprocess.Validation("invalid before timestamp"))
		}
		opts.Before = &t
	}
	if v := c.Query("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fail(c, errprocess.Validation("invalid after timestamp"))
		}
		opts.After = &t
	}
	views, err := h.MessageUC.ListForConversation(c.UserContext(), c.Params("id"), callerID(c), opts)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(views)
}

// EditMessage PUT /messages/:id
func (h *ChatHTTPHandler) EditMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	msg, err := h.MessageUC.Edit(c.UserContext(), c.Params("id"), callerID(c), req.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage DELETE /messages/:id
func (h *ChatHTTPHandler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.MessageUC.Delete(c.UserContext(), c.Params("id"), callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkMessageRead POST /messages/:id/read
func (h *ChatHTTPHandler) MarkMessageRead(c *fiber.Ctx) error {
	result, err := h.ReadTrackerUC.MarkMessageRead(c.UserContext(), c.Params("id"), callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// MarkConversationRead POST /conversations/:id/read
func (h *ChatHTTPHandler) MarkConversationRead(c *fiber.Ctx) error {
	var req struct {
		ThroughMessageID *string `json:"through_message_id"`
	}
	// body is optional, 無 body 就是整個會話
	_ = c.BodyParser(&req)
	result, err := h.ReadTrackerUC.MarkConversationRead(c.UserContext(), c.Params("id"), callerID(c), req.ThroughMessageID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// UnreadCount GET /conversations/:id/unread
func (h *ChatHTTPHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.ReadTrackerUC.UnreadCount(c.UserContext(), c.Params("id"), callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unread": count})
}

// MessageReaders GET /messages/:id/readers
func (h *ChatHTTPHandler) MessageReaders(c *fiber.Ctx) error {
	readers, err := h.ReadTrackerUC.ReadersOf(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(readers)
}
