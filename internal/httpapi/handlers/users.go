package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/auth"
	"github.com/suPer8Hu/ai-chat-backend/internal/common"
	"github.com/suPer8Hu/ai-chat-backend/internal/httpapi/middleware"
	"github.com/suPer8Hu/ai-chat-backend/internal/models"
	"github.com/suPer8Hu/ai-chat-backend/internal/users"
)

func (h *Handler) failUser(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		common.Fail(c, http.StatusNotFound, 40411, "user not found")
	case errors.Is(err, users.ErrEmailRequired), errors.Is(err, users.ErrUsernameRequired),
		errors.Is(err, users.ErrEmailTaken), errors.Is(err, users.ErrUsernameTaken):
		common.Fail(c, http.StatusBadRequest, 10010, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		common.Fail(c, http.StatusUnauthorized, 40100, "Incorrect username or password")
	default:
		h.log.Error("user operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
	}
}

func userIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req users.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		h.failUser(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, p)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	p, err := h.users.Profile(c.Request.Context(), id)
	if err != nil {
		h.failUser(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var patch users.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.users.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.failUser(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.failUser(c, err)
		return
	}
	common.OK(c, gin.H{"success": true, "message": "User deleted successfully"})
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.failUser(c, err)
		return
	}
	token, err := h.issuer.Issue(p.ID, p.Username)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"access_token": token, "token_type": auth.TokenType})
}

// Me returns the caller's profile. Requires middleware.AuthRequired.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var (
		p   models.Profile
		err error
	)
	if claims.UserID != 0 {
		p, err = h.users.Profile(c.Request.Context(), claims.UserID)
	} else {
		p, err = h.users.ProfileByUsername(c.Request.Context(), claims.Username)
	}
	if err != nil {
		h.failUser(c, err)
		return
	}
	common.OK(c, p)
}
