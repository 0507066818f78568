package handlers

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/filestore"
)

func (h *Handler) failFile(c *gin.Context, err error) {
	switch {
	case errors.Is(err, filestore.ErrInvalidPath):
		common.Fail(c, http.StatusBadRequest, 10030, "invalid file path")
	case errors.Is(err, os.ErrNotExist):
		common.Fail(c, http.StatusNotFound, 40430, "file not found")
	default:
		h.log.Error("file operation failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50030, "storage error")
	}
}

func (h *Handler) filesReady(c *gin.Context) bool {
	if h.files == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "file storage not configured")
		return false
	}
	return true
}

func filePathParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func (h *Handler) UploadFile(c *gin.Context) {
	if !h.filesReady(c) {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10031, "multipart field 'file' required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		h.failFile(c, err)
		return
	}
	defer src.Close()

	p, err := h.files.Save(src, fh.Filename, c.PostForm("subdir"))
	if err != nil {
		h.failFile(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, gin.H{"path": p, "size": fh.Size})
}

func (h *Handler) ListFiles(c *gin.Context) {
	if !h.filesReady(c) {
		return
	}
	names, err := h.files.List(c.Query("subdir"))
	if err != nil {
		h.failFile(c, err)
		return
	}
	common.OK(c, gin.H{"files": names})
}

func (h *Handler) DownloadFile(c *gin.Context) {
	if !h.filesReady(c) {
		return
	}
	f, info, err := h.files.Open(filePathParam(c))
	if err != nil {
		h.failFile(c, err)
		return
	}
	defer f.Close()

	ct := mime.TypeByExtension(path.Ext(info.Name()))
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), ct, f, nil)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	if !h.filesReady(c) {
		return
	}
	removed, err := h.files.Delete(filePathParam(c))
	if err != nil {
		h.failFile(c, err)
		return
	}
	if !removed {
		common.Fail(c, http.StatusNotFound, 40430, "file not found")
		return
	}
	common.OK(c, gin.H{"success": true})
}
