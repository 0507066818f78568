// Package app assembles the service from configuration. Everything is built
// once here and passed down explicitly.
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/ai-chat-backend/internal/auth"
	"github.com/suPer8Hu/ai-chat-backend/internal/chat"
	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/db"
	"github.com/suPer8Hu/ai-chat-backend/internal/email"
	"github.com/suPer8Hu/ai-chat-backend/internal/httpapi"
	"github.com/suPer8Hu/ai-chat-backend/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-chat-backend/internal/metrics"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/filestore"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/rabbitmq"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/redisstore"
	"github.com/suPer8Hu/ai-chat-backend/internal/users"
)

// Core is what both the HTTP server and the worker need.
type Core struct {
	Cfg      config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Repo     *chat.Repo
	Turns    *chat.Orchestrator
	Registry *prometheus.Registry
}

func NewCore(ctx context.Context, cfg config.Config, log *zap.Logger) (*Core, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	provider, err := Provider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := chat.NewRepo(gdb)
	turns := chat.NewOrchestrator(repo, provider, cfg.ChatContextWindowSize, log.Named("chat"), metrics.New(reg))

	log.Info("core ready",
		zap.String("db_driver", cfg.DBDriver),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("context_window", cfg.ChatContextWindowSize),
	)
	return &Core{Cfg: cfg, Log: log, DB: gdb, Repo: repo, Turns: turns, Registry: reg}, nil
}

func (c *Core) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Server is the HTTP side: Core plus the optional infrastructure.
type Server struct {
	*Core
	Router *gin.Engine

	redis     *redisstore.Store
	publisher *rabbitmq.Publisher
}

// NewServer builds the router. Redis, RabbitMQ and SMTP are optional: when
// unreachable the server starts without profile caching, async jobs or mail.
func NewServer(ctx context.Context, core *Core) (*Server, error) {
	cfg, log := core.Cfg, core.Log
	s := &Server{Core: core}

	hasher, err := auth.NewHasher(cfg.PasswordHash)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(cfg.TokenMode, cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	userOpts := []users.Option{users.WithLogger(log.Named("users"))}
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rds.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, profile cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rds.Close()
	} else {
		s.redis = rds
		userOpts = append(userOpts, users.WithCache(rds, time.Duration(cfg.CacheTTL)*time.Second))
	}
	if cfg.SMTPEnabled() {
		sender := email.NewSender(email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}, cfg.EmailTemplatesDir)
		userOpts = append(userOpts, users.WithNotifier(sender))
	}

	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	deps := handlers.Deps{
		Cfg:    cfg,
		Log:    log.Named("http"),
		Chats:  chat.NewService(core.Repo),
		Turns:  core.Turns,
		Users:  users.NewService(users.NewRepo(core.DB), hasher, userOpts...),
		Issuer: issuer,
		Files:  files,
	}
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, async completion disabled", zap.Error(err))
	} else {
		s.publisher = pub
		deps.Jobs = pub
	}

	s.Router = httpapi.NewRouter(deps, core.Registry)
	return s, nil
}

func (s *Server) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.Core.Close())
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "close server")
		}
	}
	return nil
}
