package api

import (
	"chat-backend/internal/database"
	"chat-backend/pkg/api"
)

func convertUser(u database.User) api.User {
	return api.User{
		Id:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func convertConversation(c database.Conversation) api.Conversation {
	return api.Conversation{
		Id:        c.ID,
		UserId:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func convertConversations(cs []database.Conversation) []api.Conversation {
	conversations := make([]api.Conversation, 0, len(cs))
	for _, c := range cs {
		conversations = append(conversations, convertConversation(c))
	}
	return conversations
}

func convertMessage(m database.Message) api.Message {
	return api.Message{
		Id:             m.ID,
		ConversationId: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		AiAgentType:    m.AiAgentType,
		CreatedAt:      m.CreatedAt,
	}
}

func convertMessages(ms []database.Message) []api.Message {
	messages := make([]api.Message, 0, len(ms))
	for _, m := range ms {
		messages = append(messages, convertMessage(m))
	}
	return messages
}
