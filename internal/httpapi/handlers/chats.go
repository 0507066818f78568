package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-chat-backend/internal/chat"
	"github.com/suPer8Hu/ai-chat-backend/internal/common"
)

type chatView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type chatDetailView struct {
	chatView
	Messages []chat.Message `json:"messages"`
}

func viewChat(c *chat.Chat) chatView {
	return chatView{ID: c.ChatID, Title: c.DisplayTitle(), CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func viewDetail(c *chat.Chat, msgs []chat.Message) chatDetailView {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return chatDetailView{chatView: viewChat(c), Messages: msgs}
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), queryInt(c, "skip", 0), queryInt(c, "limit", 20))
	if err != nil {
		h.failChat(c, err)
		return
	}
	out := make([]chatView, 0, len(chats))
	for i := range chats {
		out = append(out, viewChat(&chats[i]))
	}
	common.OK(c, out)
}

type chatTitleReq struct {
	Title *string `json:"title"`
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req chatTitleReq
	// empty body is allowed
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
	}
	ch, err := h.chats.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, viewDetail(ch, nil))
}

func (h *Handler) GetChat(c *gin.Context) {
	d, err := h.chats.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, viewDetail(d.Chat, d.Messages))
}

func (h *Handler) UpdateChat(c *gin.Context) {
	var req chatTitleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	ch, err := h.chats.UpdateChat(c.Request.Context(), c.Param("id"), chat.ChatPatch{Title: req.Title})
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, viewChat(ch))
}

func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.chats.DeleteChat(c.Request.Context(), c.Param("id")); err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, gin.H{"success": true, "message": "Chat deleted successfully"})
}

type createMessageReq struct {
	ChatID   string `json:"chat_id" binding:"required"`
	Content  string `json:"content"`
	IsFromAI bool   `json:"is_from_ai"`
}

func (h *Handler) CreateMessage(c *gin.Context) {
	var req createMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	m, err := h.chats.CreateMessage(c.Request.Context(), req.ChatID, req.Content, req.IsFromAI)
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, m)
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.chats.ListMessages(c.Request.Context(), c.Param("id"), queryInt(c, "skip", 0), queryInt(c, "limit", 50))
	if err != nil {
		h.failChat(c, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	common.OK(c, msgs)
}

func (h *Handler) GetMessage(c *gin.Context) {
	m, err := h.chats.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.chats.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, gin.H{"success": true, "message": "Message deleted successfully"})
}
