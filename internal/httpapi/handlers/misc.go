package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) Root(c *gin.Context) {
	common.OK(c, gin.H{"message": "Welcome to " + h.cfg.ProjectName})
}

func (h *Handler) Hello(c *gin.Context) {
	common.OK(c, gin.H{"message": "Hello, World!"})
}
