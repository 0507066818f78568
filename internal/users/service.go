package users

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/auth"
	"github.com/suPer8Hu/ai-chat-backend/internal/models"
)

// Cache is the subset of redisstore.Store used for profile caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, expiry time.Duration) error
	Delete(ctx context.Context, keys ...string) (bool, error)
}

// Notifier is told about new accounts, e.g. to send a welcome email.
type Notifier interface {
	Welcome(ctx context.Context, p models.Profile) error
}

type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
	Password string  `json:"password"`
}

// UserPatch lists the fields a user update may change. Nil means unchanged.
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

type Service struct {
	repo     *Repo
	hasher   *auth.Hasher
	cache    Cache
	cacheTTL time.Duration
	notifier Notifier
	log      *zap.Logger
}

type Option func(*Service)

func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) { s.cache, s.cacheTTL = c, ttl }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo *Repo, hasher *auth.Hasher, opts ...Option) *Service {
	s := &Service{repo: repo, hasher: hasher, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (models.Profile, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" {
		return models.Profile{}, ErrEmailRequired
	}
	if taken, err := s.repo.Taken(ctx, "email", in.Email, 0); err != nil {
		return models.Profile{}, err
	} else if taken {
		return models.Profile{}, ErrEmailTaken
	}
	if in.Username == "" {
		return models.Profile{}, ErrUsernameRequired
	}
	if taken, err := s.repo.Taken(ctx, "username", in.Username, 0); err != nil {
		return models.Profile{}, err
	} else if taken {
		return models.Profile{}, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.Profile{}, err
	}
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return models.Profile{}, err
	}

	p := u.Profile()
	if s.notifier != nil {
		// detached from the request: the response must not wait on SMTP
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.Welcome(ctx, p); err != nil {
				s.log.Warn("welcome email failed", zap.Uint64("user_id", p.ID), zap.Error(err))
			}
		}()
	}
	return p, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Profile, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return models.Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Profile{}, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return models.Profile{}, ErrInvalidCredentials
	}
	return u.Profile(), nil
}

func cacheKey(id uint64) string {
	return "user:profile:" + strconv.FormatUint(id, 10)
}

// Profile reads through the cache. Cache errors degrade to a database read.
func (s *Service) Profile(ctx context.Context, id uint64) (models.Profile, error) {
	if s.cache != nil {
		var p models.Profile
		ok, err := s.cache.GetJSON(ctx, cacheKey(id), &p)
		if err != nil {
			s.log.Warn("profile cache read failed", zap.Uint64("user_id", id), zap.Error(err))
		} else if ok {
			return p, nil
		}
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Profile{}, err
	}
	p := u.Profile()
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(id), p, s.cacheTTL); err != nil {
			s.log.Warn("profile cache write failed", zap.Uint64("user_id", id), zap.Error(err))
		}
	}
	return p, nil
}

// ProfileByUsername is uncached; it backs placeholder-token lookups.
func (s *Service) ProfileByUsername(ctx context.Context, username string) (models.Profile, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return models.Profile{}, err
	}
	return u.Profile(), nil
}

func (s *Service) Update(ctx context.Context, id uint64, patch UserPatch) (models.Profile, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return models.Profile{}, err
	}

	fields := map[string]any{}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return models.Profile{}, ErrEmailRequired
		}
		if taken, err := s.repo.Taken(ctx, "email", email, id); err != nil {
			return models.Profile{}, err
		} else if taken {
			return models.Profile{}, ErrEmailTaken
		}
		fields["email"] = email
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return models.Profile{}, ErrUsernameRequired
		}
		if taken, err := s.repo.Taken(ctx, "username", username, id); err != nil {
			return models.Profile{}, err
		} else if taken {
			return models.Profile{}, ErrUsernameTaken
		}
		fields["username"] = username
	}
	if patch.FullName != nil {
		fields["full_name"] = *patch.FullName
	}
	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return models.Profile{}, err
		}
		fields["password_hash"] = hash
	}
	if len(fields) == 0 {
		return s.Profile(ctx, id)
	}

	u, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return models.Profile{}, err
	}
	s.invalidate(ctx, id)
	return u.Profile(), nil
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uint64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.log.Warn("profile cache invalidate failed", zap.Uint64("user_id", id), zap.Error(err))
	}
}
