package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func TestRabbitMQPublishReceive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	publisher, err := NewRabbitMQPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := NewRabbitMQReceiver(url)
	require.NoError(t, err)
	defer receiver.Close()

	payload := MessageCreatedPayload{
		EventId:        uuid.New(),
		MessageId:      11,
		ConversationId: 4,
		Role:           "user",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, publisher.PublishMessageCreated(ctx, payload))

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, MessageEventsQueue, task.Type())
		var received MessageCreatedPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload.EventId, received.EventId)
		assert.Equal(t, payload.MessageId, received.MessageId)
		assert.Nil(t, received.AiAgentType)
		require.NoError(t, task.Ack())
	case <-ctx.Done():
		t.Fatal("timed out waiting for rabbitmq delivery")
	}
}
