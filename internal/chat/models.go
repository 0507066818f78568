package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chat struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	Title     *string   `gorm:"type:varchar(255)" json:"title"`
	CreatedAt time.Time `gorm:"index:ix_chats_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"index:ix_chats_updated_at" json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ChatID == "" {
		c.ChatID = uuid.NewString()
	}
	return nil
}

// DisplayTitle is the stored title, or "Chat <id>" when none was set.
func (c *Chat) DisplayTitle() string {
	if c.Title != nil {
		return *c.Title
	}
	return "Chat " + c.ChatID
}

// Message is immutable once written.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);not null;index:ix_messages_chat_id" json:"chat_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsFromAI  bool      `gorm:"not null" json:"is_from_ai"`
	CreatedAt time.Time `gorm:"index:ix_messages_created_at" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	return nil
}

// ChatPatch lists the mutable fields of a Chat. Title replaces the stored title; nil clears it.
type ChatPatch struct {
	Title *string
}

// Models is the set of tables owned by this package, in migration order.
func Models() []any {
	return []any{&Chat{}, &Message{}, &Job{}}
}
