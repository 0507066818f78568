package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
)

type completeReq struct {
	Content string `json:"content" binding:"required"`
}

// Complete runs a non-streaming turn and returns the stored AI message.
func (h *Handler) Complete(c *gin.Context) {
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	m, err := h.turns.CompleteTurn(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, m)
}

// CompleteAsync queues a turn for the worker. Repeating a request with the same
// Idempotency-Key returns the original job without queueing it again.
func (h *Handler) CompleteAsync(c *gin.Context) {
	if h.jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue not configured")
		return
	}
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	chatID := c.Param("id")
	j, created, err := h.chats.EnqueueCompletion(c.Request.Context(), chatID, req.Content, key)
	if err != nil {
		h.failChat(c, err)
		return
	}

	// publish only when a new job was created
	if created {
		if err := h.jobs.PublishJob(c.Request.Context(), j.ID); err != nil {
			h.log.Error("publish job failed", zap.String("chat_id", chatID), zap.String("job_id", j.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}
	common.Respond(c, http.StatusAccepted, gin.H{"job_id": j.ID, "created": created})
}

func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.chats.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, gin.H{
		"id":                j.ID,
		"chat_id":           j.ChatID,
		"status":            j.Status,
		"result_message_id": j.ResultMessageID,
		"error":             j.Error,
		"created_at":        j.CreatedAt,
		"updated_at":        j.UpdatedAt,
	})
}
