package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/auth"
	"github.com/suPer8Hu/ai-chat-backend/internal/chat"
	"github.com/suPer8Hu/ai-chat-backend/internal/common"
	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/filestore"
	"github.com/suPer8Hu/ai-chat-backend/internal/users"
)

// JobPublisher hands a queued job to the worker pool.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Deps are the services the HTTP layer talks to. Jobs and Files may be nil when
// the backing infrastructure is not configured; the routes then answer 503.
type Deps struct {
	Cfg    config.Config
	Log    *zap.Logger
	Chats  *chat.Service
	Turns  *chat.Orchestrator
	Users  *users.Service
	Issuer *auth.Issuer
	Files  *filestore.Store
	Jobs   JobPublisher
}

type Handler struct {
	cfg    config.Config
	log    *zap.Logger
	chats  *chat.Service
	turns  *chat.Orchestrator
	users  *users.Service
	issuer *auth.Issuer
	files  *filestore.Store
	jobs   JobPublisher
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:    d.Cfg,
		log:    log,
		chats:  d.Chats,
		turns:  d.Turns,
		users:  d.Users,
		issuer: d.Issuer,
		files:  d.Files,
		jobs:   d.Jobs,
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// failChat maps chat-layer errors onto the response envelope.
func (h *Handler) failChat(c *gin.Context, err error) {
	var perr *chat.ProviderError
	var serr *chat.StoreError
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "chat not found")
	case errors.Is(err, chat.ErrMessageNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "message not found")
	case errors.Is(err, chat.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "job not found")
	case errors.Is(err, context.Canceled):
		// client went away, nobody to answer
		c.Abort()
	case errors.As(err, &perr):
		h.log.Warn("provider failure", zap.String("path", c.FullPath()), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 50201, "completion provider failed")
	case errors.As(err, &serr):
		h.log.Error("store failure", zap.String("path", c.FullPath()), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "store failure")
	default:
		h.log.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
	}
}
