package database

import (
	"time"
)

const (
	RoleUser      string = "user"
	RoleAssistant string = "assistant"
	RoleSystem    string = "system"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:50;not null"`
	Email     string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Conversations []Conversation `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type Conversation struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    uint    `gorm:"not null;index:idx_conversations_user_updated,priority:1"`
	Title     *string // NULL when the conversation was created without a title
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:idx_conversations_user_updated,priority:2"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	Role           string    `gorm:"size:20;not null"`
	Content        string    `gorm:"type:text;not null"`
	AiAgentType    *string   `gorm:"size:32"` // NULL for user-authored messages
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}
