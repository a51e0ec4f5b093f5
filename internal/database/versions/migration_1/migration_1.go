package migration_1

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Conversations are listed per user by recency and messages per conversation
// chronologically, so both get a composite index matching the ORDER BY.

type Conversation struct {
	UserID    uint      `gorm:"index:idx_conversations_user_updated,priority:1"`
	UpdatedAt time.Time `gorm:"index:idx_conversations_user_updated,priority:2"`
}

type Message struct {
	ConversationID uint      `gorm:"index:idx_messages_conversation_created,priority:1"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}

const (
	conversationIndex = "idx_conversations_user_updated"
	messageIndex      = "idx_messages_conversation_created"
)

func Migration(db *gorm.DB) error {
	if err := db.Migrator().CreateIndex(&Conversation{}, conversationIndex); err != nil {
		return fmt.Errorf("error creating index %s: %w", conversationIndex, err)
	}

	if err := db.Migrator().CreateIndex(&Message{}, messageIndex); err != nil {
		return fmt.Errorf("error creating index %s: %w", messageIndex, err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropIndex(&Message{}, messageIndex); err != nil {
		return fmt.Errorf("error dropping index %s: %w", messageIndex, err)
	}

	if err := db.Migrator().DropIndex(&Conversation{}, conversationIndex); err != nil {
		return fmt.Errorf("error dropping index %s: %w", conversationIndex, err)
	}

	return nil
}
