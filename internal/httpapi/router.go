package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
	"github.com/suPer8Hu/ai-chat-backend/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-chat-backend/internal/httpapi/middleware"
)

// NewRouter wires every route under cfg.APIPrefix. gatherer serves /metrics
// and may be nil.
func NewRouter(d handlers.Deps, gatherer prometheus.Gatherer) *gin.Engine {
	if !d.Cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHandler(d)
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:   []string{"x-vercel-ai-data-stream", middleware.RequestIDHeader},
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/", h.Root)
	r.GET("/ping", h.Ping)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	prefix := d.Cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.GET("/hello", h.Hello)

	// users
	api.POST("/users/", h.CreateUser)
	api.GET("/users/me", middleware.AuthRequired(d.Issuer), h.Me)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)
	api.POST("/login/", h.Login)

	// chats & messages
	api.GET("/chats/", h.ListChats)
	api.POST("/chats/", h.CreateChat)
	api.GET("/chats/:id", h.GetChat)
	api.PUT("/chats/:id", h.UpdateChat)
	api.DELETE("/chats/:id", h.DeleteChat)
	api.GET("/chats/:id/messages/", h.ListMessages)
	api.POST("/chats/:id/complete", h.Complete)
	api.POST("/chats/:id/complete/async", h.CompleteAsync)
	api.POST("/messages/", h.CreateMessage)
	api.GET("/messages/:id", h.GetMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)
	api.GET("/jobs/:id", h.GetJob)

	// streaming
	stream := api.Group("", middleware.RateLimit(d.Cfg.StreamRateLimit, d.Cfg.StreamRateBurst))
	stream.POST("/chat", h.StreamChat)
	stream.POST("/stream-message", h.StreamMessage)

	// files
	api.POST("/files", h.UploadFile)
	api.GET("/files", h.ListFiles)
	api.GET("/files/*path", h.DownloadFile)
	api.DELETE("/files/*path", h.DeleteFile)

	return r
}
