package handlers

import (
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
	"github.com/suPer8Hu/ai-chat-backend/internal/framing"
)

type clientMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// attachments and tool invocations are accepted but not used
	Attachments     []map[string]any `json:"experimental_attachments,omitempty"`
	ToolInvocations []map[string]any `json:"toolInvocations,omitempty"`
}

type chatStreamReq struct {
	Messages []clientMessage `json:"messages"`
	ChatID   string          `json:"chat_id" binding:"required"`
}

// StreamChat serves the Vercel AI SDK "useChat" endpoint. Only the last
// message of the list is new; earlier ones are already stored.
func (h *Handler) StreamChat(c *gin.Context) {
	c.Header(framing.HeaderName, framing.HeaderValue)

	var req chatStreamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Role != "user" {
		common.Fail(c, http.StatusBadRequest, 10002, "Last message must be from the user")
		return
	}

	protocol := c.DefaultQuery("protocol", framing.Data)
	last := req.Messages[len(req.Messages)-1]
	h.writeTurn(c, h.turns.StreamTurn(c.Request.Context(), req.ChatID, last.Content, protocol))
}

type streamMessageReq struct {
	Content  string `json:"content"`
	ChatID   string `json:"chat_id" binding:"required"`
	// nil when absent; an explicit value, even "", is used as given
	Protocol *string `json:"protocol"`
}

func (h *Handler) StreamMessage(c *gin.Context) {
	c.Header(framing.HeaderName, framing.HeaderValue)

	var req streamMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	protocol := framing.Data
	if req.Protocol != nil {
		protocol = *req.Protocol
	}
	h.writeTurn(c, h.turns.StreamTurn(c.Request.Context(), req.ChatID, req.Content, protocol))
}

// writeTurn copies the turn's chunks to the client, flushing after each. An
// error before the first chunk still gets a JSON error response; after it the
// connection is aborted so the client sees a truncated body.
func (h *Handler) writeTurn(c *gin.Context, seq iter.Seq2[[]byte, error]) {
	started := false
	start := func() {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
		started = true
	}

	for chunk, err := range seq {
		if err != nil {
			if !started {
				h.failChat(c, err)
				return
			}
			h.log.Warn("stream aborted after first chunk",
				zap.String("request_id", c.GetString("request_id")), zap.Error(err))
			panic(http.ErrAbortHandler)
		}
		if !started {
			start()
		}
		if _, werr := c.Writer.Write(chunk); werr != nil {
			// client gone; leaving the loop stops the turn
			return
		}
		c.Writer.Flush()
	}
	if !started {
		start()
	}
}
