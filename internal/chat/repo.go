package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&c).Error; err != nil {
		return nil, notFound(err, ErrChatNotFound)
	}
	return &c, nil
}

// ListChats returns chats most recently updated first.
func (r *Repo) ListChats(ctx context.Context, skip, limit int) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *Repo) UpdateChat(ctx context.Context, chatID string, patch ChatPatch) (*Chat, error) {
	var out *Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.Where("chat_id = ?", chatID).First(&c).Error; err != nil {
			return notFound(err, ErrChatNotFound)
		}
		var title any
		if patch.Title != nil {
			title = *patch.Title
		}
		now := time.Now()
		if err := tx.Model(&Chat{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{"title": title, "updated_at": now}).Error; err != nil {
			return err
		}
		c.Title = patch.Title
		c.UpdatedAt = now
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteChat removes the chat and all of its messages.
func (r *Repo) DeleteChat(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("chat_id = ?", chatID).Delete(&Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return tx.Where("chat_id = ?", chatID).Delete(&Message{}).Error
	})
}

// AppendMessage inserts a message and bumps the owning chat's updated_at in one
// transaction. It fails with ErrChatNotFound when the chat does not exist.
func (r *Repo) AppendMessage(ctx context.Context, chatID, content string, fromAI bool) (*Message, error) {
	m := &Message{ChatID: chatID, Content: content, IsFromAI: fromAI}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Chat{}).Where("chat_id = ?", chatID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrChatNotFound
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).
			Where("chat_id = ?", chatID).
			UpdateColumn("updated_at", m.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repo) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&m).Error; err != nil {
		return nil, notFound(err, ErrMessageNotFound)
	}
	return &m, nil
}

// ListMessages returns one page of a chat's messages, oldest first.
func (r *Repo) ListMessages(ctx context.Context, chatID string, skip, limit int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// History returns every message of the chat, oldest first. An unknown chat has no history.
func (r *Repo) History(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteMessage removes a single message; the chat's timestamps are left untouched.
func (r *Repo) DeleteMessage(ctx context.Context, messageID string) error {
	res := r.db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&job).Error
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if idempotency_key already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.CreateJob(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.CreateJob(ctx, job)
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByIdempotencyKey(ctx, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, ErrJobNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
