package migration_0

import (
	"time"

	"gorm.io/gorm"
)

// Snapshot of the initial schema. These types must not change once released,
// later changes belong in their own migration.

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:50;not null"`
	Email     string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Conversations []Conversation `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type Conversation struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index"`
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;index"`
	Role           string `gorm:"size:20;not null"`
	Content        string `gorm:"type:text;not null"`
	AiAgentType    *string `gorm:"size:32"`
	CreatedAt      time.Time
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Conversation{}, &Message{})
}
