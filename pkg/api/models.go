package api

import "time"

type User struct {
	Id        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Conversation struct {
	Id        uint      `json:"id"`
	UserId    uint      `json:"user_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	Id             uint      `json:"id"`
	ConversationId uint      `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	AiAgentType    *string   `json:"ai_agent_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type CreateUserRequest struct {
	Username string `json:"username" schema:"username" validate:"required,min=1,max=50"`
	Email    string `json:"email" schema:"email" validate:"required,email"`
}

type CreateConversationRequest struct {
	UserId uint    `json:"user_id" schema:"user_id" validate:"required"`
	Title  *string `json:"title,omitempty" schema:"title"`
}

type GetConversationsRequest struct {
	UserId uint `json:"user_id" schema:"user_id" validate:"required"`
}

type UpdateConversationTitleRequest struct {
	ConversationId uint    `json:"conversation_id" schema:"conversation_id" validate:"required"`
	Title          *string `json:"title" schema:"title" validate:"required"`
}

type SendMessageRequest struct {
	ConversationId uint    `json:"conversation_id" schema:"conversation_id" validate:"required"`
	Content        string  `json:"content" schema:"content" validate:"required,min=1"`
	AiAgentType    *string `json:"ai_agent_type,omitempty" schema:"ai_agent_type" validate:"omitempty,oneof=emotional_support psychology sociology general_qa meal_planning travel_planning"`
}

type GetMessagesRequest struct {
	ConversationId uint `json:"conversation_id" schema:"conversation_id" validate:"required"`
}
