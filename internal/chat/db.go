package chat

import (
	"chat-backend/internal/database"
	"context"
	"sync"

	"gorm.io/gorm"
)

// SQLite only supports one writer at a time, so we need a lock
// whenever we write to the database
var dbMutex sync.Mutex

func createUser(ctx context.Context, db *gorm.DB, user *database.User) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).Create(user).Error
}

func userExists(ctx context.Context, db *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

func createConversation(ctx context.Context, db *gorm.DB, conversation *database.Conversation) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).Create(conversation).Error
}

func listConversations(ctx context.Context, db *gorm.DB, userID uint) ([]database.Conversation, error) {
	conversations := []database.Conversation{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&conversations).Error
	return conversations, err
}

// updateConversationTitle returns the number of rows changed, zero when no
// conversation has the given id.
func updateConversationTitle(ctx context.Context, db *gorm.DB, conversationID uint, title string) (int64, error) {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	result := db.WithContext(ctx).
		Model(&database.Conversation{}).
		Where("id = ?", conversationID).
		Update("title", title)
	return result.RowsAffected, result.Error
}

func getConversation(ctx context.Context, db *gorm.DB, conversationID uint) (database.Conversation, error) {
	var conversation database.Conversation
	err := db.WithContext(ctx).First(&conversation, "id = ?", conversationID).Error
	return conversation, err
}

func saveMessage(ctx context.Context, db *gorm.DB, message *database.Message) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).Create(message).Error
}

func listMessages(ctx context.Context, db *gorm.DB, conversationID uint) ([]database.Message, error) {
	messages := []database.Message{}
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}
