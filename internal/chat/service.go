package chat

import (
	"chat-backend/internal/agents"
	"chat-backend/internal/database"
	"chat-backend/internal/messaging"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const publishTimeout = 5 * time.Second

type Service struct {
	db         *gorm.DB
	responder  agents.Responder
	publisher  messaging.Publisher
	atomicSend bool
}

// NewService creates the chat service. publisher may be nil, in which case no
// message events are emitted. When atomicSend is set both inserts of
// SendMessage share one transaction.
func NewService(db *gorm.DB, responder agents.Responder, publisher messaging.Publisher, atomicSend bool) *Service {
	return &Service{
		db:         db,
		responder:  responder,
		publisher:  publisher,
		atomicSend: atomicSend,
	}
}

func (s *Service) CreateUser(ctx context.Context, username, email string) (database.User, error) {
	user := database.User{Username: username, Email: email}
	if err := createUser(ctx, s.db, &user); err != nil {
		slog.Error("error creating user", "email", email, "error", err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.User{}, newError(ErrConflict, err, fmt.Sprintf("User with email %s already exists", email))
		}
		return database.User{}, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// CreateConversation checks that the owner exists before inserting. An empty
// title is stored as NULL.
func (s *Service) CreateConversation(ctx context.Context, userID uint, title *string) (database.Conversation, error) {
	exists, err := userExists(ctx, s.db, userID)
	if err != nil {
		slog.Error("error checking user", "user_id", userID, "error", err)
		return database.Conversation{}, fmt.Errorf("error checking user: %w", err)
	}
	if !exists {
		slog.Error("conversation owner does not exist", "user_id", userID)
		return database.Conversation{}, newError(ErrNotFound, nil, fmt.Sprintf("User with id %d does not exist", userID))
	}

	conversation := database.Conversation{UserID: userID}
	if title != nil && *title != "" {
		conversation.Title = title
	}

	if err := createConversation(ctx, s.db, &conversation); err != nil {
		slog.Error("error creating conversation", "user_id", userID, "error", err)
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return database.Conversation{}, newError(ErrConstraint, err, fmt.Sprintf("User with id %d does not exist", userID))
		}
		return database.Conversation{}, fmt.Errorf("error creating conversation: %w", err)
	}
	return conversation, nil
}

// GetConversations lists a user's conversations, most recently updated
// first. Unknown users simply have no conversations.
func (s *Service) GetConversations(ctx context.Context, userID uint) ([]database.Conversation, error) {
	conversations, err := listConversations(ctx, s.db, userID)
	if err != nil {
		slog.Error("error listing conversations", "user_id", userID, "error", err)
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	return conversations, nil
}

func (s *Service) UpdateConversationTitle(ctx context.Context, conversationID uint, title string) (database.Conversation, error) {
	updated, err := updateConversationTitle(ctx, s.db, conversationID, title)
	if err != nil {
		slog.Error("error updating conversation title", "conversation_id", conversationID, "error", err)
		return database.Conversation{}, fmt.Errorf("error updating conversation title: %w", err)
	}
	if updated == 0 {
		slog.Error("conversation not found", "conversation_id", conversationID)
		return database.Conversation{}, newError(ErrNotFound, nil, fmt.Sprintf("Conversation with id %d not found", conversationID))
	}

	conversation, err := getConversation(ctx, s.db, conversationID)
	if err != nil {
		slog.Error("error loading conversation", "conversation_id", conversationID, "error", err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Conversation{}, newError(ErrNotFound, err, fmt.Sprintf("Conversation with id %d not found", conversationID))
		}
		return database.Conversation{}, fmt.Errorf("error loading conversation: %w", err)
	}
	return conversation, nil
}

// SendMessage stores the user's message, derives a reply for the resolved
// agent type and stores the reply. The reply is returned. The conversation is
// not checked up front; a missing conversation fails the first insert.
func (s *Service) SendMessage(ctx context.Context, conversationID uint, content string, agentType *string) (database.Message, error) {
	resolved := agents.Resolve(agentType)
	if !resolved.Valid() {
		slog.Error("invalid agent type", "ai_agent_type", resolved)
		return database.Message{}, newError(ErrInvalidInput, nil, fmt.Sprintf("Invalid agent type %q", resolved))
	}

	var persisted []database.Message
	var reply database.Message
	var err error

	if s.atomicSend {
		dbMutex.Lock()
		err = s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
			persisted, reply, err = s.exchange(ctx, conversationID, content, resolved, func(msg *database.Message) error {
				return txn.Create(msg).Error
			})
			return err
		})
		dbMutex.Unlock()
		if err != nil {
			persisted = nil
		}
	} else {
		persisted, reply, err = s.exchange(ctx, conversationID, content, resolved, func(msg *database.Message) error {
			return saveMessage(ctx, s.db, msg)
		})
	}

	for _, msg := range persisted {
		s.publishMessageCreated(ctx, msg)
	}

	if err != nil {
		slog.Error("error sending message", "conversation_id", conversationID, "ai_agent_type", resolved, "error", err)
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return database.Message{}, newError(ErrConstraint, err, fmt.Sprintf("Conversation with id %d does not exist: %v", conversationID, err))
		}
		return database.Message{}, fmt.Errorf("error sending message: %w", err)
	}

	return reply, nil
}

// exchange runs the two inserts of a send through save and returns every
// message that was written before any failure.
func (s *Service) exchange(ctx context.Context, conversationID uint, content string, agentType agents.Type, save func(*database.Message) error) ([]database.Message, database.Message, error) {
	userMsg := database.Message{
		ConversationID: conversationID,
		Role:           database.RoleUser,
		Content:        content,
	}
	if err := save(&userMsg); err != nil {
		return nil, database.Message{}, fmt.Errorf("error saving user message: %w", err)
	}
	persisted := []database.Message{userMsg}

	response, err := s.responder.Respond(ctx, content, agentType)
	if err != nil {
		return persisted, database.Message{}, fmt.Errorf("error generating response: %w", err)
	}

	agent := string(agentType)
	reply := database.Message{
		ConversationID: conversationID,
		Role:           database.RoleAssistant,
		Content:        response,
		AiAgentType:    &agent,
	}
	if err := save(&reply); err != nil {
		return persisted, database.Message{}, fmt.Errorf("error saving assistant message: %w", err)
	}

	return append(persisted, reply), reply, nil
}

// GetMessages lists a conversation's messages in the order they were sent.
func (s *Service) GetMessages(ctx context.Context, conversationID uint) ([]database.Message, error) {
	messages, err := listMessages(ctx, s.db, conversationID)
	if err != nil {
		slog.Error("error listing messages", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return messages, nil
}

func (s *Service) publishMessageCreated(ctx context.Context, msg database.Message) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	payload := messaging.MessageCreatedPayload{
		EventId:        uuid.New(),
		MessageId:      msg.ID,
		ConversationId: msg.ConversationID,
		Role:           msg.Role,
		AiAgentType:    msg.AiAgentType,
		CreatedAt:      msg.CreatedAt,
	}
	if err := s.publisher.PublishMessageCreated(ctx, payload); err != nil {
		slog.Error("error publishing message created event", "message_id", msg.ID, "error", err)
	}
}
