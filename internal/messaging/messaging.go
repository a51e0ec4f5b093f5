package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MessageEventsQueue = "message_events"
	RetryDelay         = 5 * time.Second
	MaxConnectRetry    = 5
)

var ErrQueueClosed = errors.New("queue is closed")

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// MessageCreatedPayload is emitted once for every persisted chat message.
type MessageCreatedPayload struct {
	EventId        uuid.UUID `json:"event_id"`
	MessageId      uint      `json:"message_id"`
	ConversationId uint      `json:"conversation_id"`
	Role           string    `json:"role"`
	AiAgentType    *string   `json:"ai_agent_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type Publisher interface {
	PublishMessageCreated(ctx context.Context, payload MessageCreatedPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
