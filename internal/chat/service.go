package chat

import (
	"context"
	"strings"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
)

// Service implements chat and message CRUD and job bookkeeping on top of Repo.
type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// ChatDetail is a chat with its messages, oldest first.
type ChatDetail struct {
	Chat     *Chat
	Messages []Message
}

func clampPage(skip, limit, def, max int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > max {
		limit = def
	}
	return skip, limit
}

func (s *Service) CreateChat(ctx context.Context, title *string) (*Chat, error) {
	c := &Chat{Title: title}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListChats(ctx context.Context, skip, limit int) ([]Chat, error) {
	skip, limit = clampPage(skip, limit, 20, 100)
	return s.repo.ListChats(ctx, skip, limit)
}

func (s *Service) GetChat(ctx context.Context, chatID string) (*ChatDetail, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.History(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return &ChatDetail{Chat: c, Messages: msgs}, nil
}

func (s *Service) UpdateChat(ctx context.Context, chatID string, patch ChatPatch) (*Chat, error) {
	return s.repo.UpdateChat(ctx, chatID, patch)
}

func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	return s.repo.DeleteChat(ctx, chatID)
}

func (s *Service) CreateMessage(ctx context.Context, chatID, content string, fromAI bool) (*Message, error) {
	return s.repo.AppendMessage(ctx, chatID, content, fromAI)
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	return s.repo.GetMessage(ctx, messageID)
}

func (s *Service) ListMessages(ctx context.Context, chatID string, skip, limit int) ([]Message, error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	skip, limit = clampPage(skip, limit, 50, 200)
	return s.repo.ListMessages(ctx, chatID, skip, limit)
}

func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	return s.repo.DeleteMessage(ctx, messageID)
}

// EnqueueCompletion records a queued single-shot completion for the chat. With a
// non-empty idempotency key an existing job for that key is returned instead and
// created is false.
func (s *Service) EnqueueCompletion(ctx context.Context, chatID, prompt, idempotencyKey string) (job *Job, created bool, err error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, false, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	j := &Job{
		ID:     jobID,
		ChatID: chatID,
		Prompt: prompt,
		Status: JobQueued,
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		j.IdempotencyKey = &key
	}
	return s.repo.CreateJobOrGetExisting(ctx, j)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}
