package integrationtests

import (
	"chat-backend/cmd"
	"chat-backend/internal/agents"
	chatapi "chat-backend/internal/api"
	"chat-backend/internal/chat"
	"chat-backend/internal/database"
	"chat-backend/internal/messaging"
	"chat-backend/pkg/api"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestChatWorkflowPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := createDB(t)
	handler := cmd.NewRouter(chatapi.NewChatService(chat.NewService(db, agents.NewTemplateResponder(), nil, false)))

	var user api.User
	require.NoError(t, rpc(handler, http.MethodPost, api.ProcCreateUser, api.CreateUserRequest{Username: "alice", Email: "alice@example.com"}, &user))
	assert.True(t, user.CreatedAt.Equal(user.UpdatedAt))

	err := rpc(handler, http.MethodPost, api.ProcCreateUser, api.CreateUserRequest{Username: "alice", Email: "alice@example.com"}, nil)
	var rerr *rpcError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, api.CodeConflict, rerr.shape.Code)

	err = rpc(handler, http.MethodPost, api.ProcCreateConversation, api.CreateConversationRequest{UserId: 424242}, nil)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, api.CodeNotFound, rerr.shape.Code)
	assert.Equal(t, "User with id 424242 does not exist", rerr.shape.Message)

	var ids []uint
	for i := 0; i < 3; i++ {
		var conversation api.Conversation
		require.NoError(t, rpc(handler, http.MethodPost, api.ProcCreateConversation, api.CreateConversationRequest{UserId: user.Id}, &conversation))
		assert.Nil(t, conversation.Title)
		ids = append(ids, conversation.Id)
		time.Sleep(5 * time.Millisecond)
	}

	var renamed api.Conversation
	require.NoError(t, rpc(handler, http.MethodPost, api.ProcUpdateConversationTitle, api.UpdateConversationTitleRequest{ConversationId: ids[0], Title: strPtr("oldest")}, &renamed))
	assert.True(t, renamed.UpdatedAt.After(renamed.CreatedAt))

	var conversations []api.Conversation
	require.NoError(t, rpc(handler, http.MethodGet, api.ProcGetConversations, api.GetConversationsRequest{UserId: user.Id}, &conversations))
	require.Len(t, conversations, 3)
	assert.Equal(t, ids[0], conversations[0].Id)
	assert.Equal(t, ids[2], conversations[1].Id)
	assert.Equal(t, ids[1], conversations[2].Id)

	var reply api.Message
	require.NoError(t, rpc(handler, http.MethodPost, api.ProcSendMessage, api.SendMessageRequest{ConversationId: ids[0], Content: "I feel sad today", AiAgentType: strPtr("emotional_support")}, &reply))
	assert.Equal(t, agents.Select("I feel sad today", agents.EmotionalSupport), reply.Content)

	err = rpc(handler, http.MethodPost, api.ProcSendMessage, api.SendMessageRequest{ConversationId: 999999, Content: "hello"}, nil)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, api.CodeConflict, rerr.shape.Code)

	var messages []api.Message
	require.NoError(t, rpc(handler, http.MethodGet, api.ProcGetMessages, api.GetMessagesRequest{ConversationId: ids[0]}, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)

	var total int64
	require.NoError(t, db.Model(&database.Message{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestMessageEventsThroughRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := createDB(t)
	rabbitURL := setupRabbitMQContainer(t, ctx)

	publisher, err := messaging.NewRabbitMQPublisher(rabbitURL)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(rabbitURL)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []messaging.MessageCreatedPayload
	worker := messaging.NewWorker(receiver, func(ctx context.Context, payload messaging.MessageCreatedPayload) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, payload)
		return nil
	})
	go worker.Start()
	defer worker.Stop()

	service := chat.NewService(db, agents.NewTemplateResponder(), publisher, true)
	user, err := service.CreateUser(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	conversation, err := service.CreateConversation(ctx, user.ID, strPtr("events"))
	require.NoError(t, err)
	reply, err := service.SendMessage(ctx, conversation.ID, "recommend a book on sociology", strPtr("sociology"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 30*time.Second, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	ids := map[uint]string{}
	for _, e := range events {
		assert.Equal(t, conversation.ID, e.ConversationId)
		ids[e.MessageId] = e.Role
	}
	assert.Equal(t, "assistant", ids[reply.ID])
	assert.Contains(t, ids, reply.ID-1)
}
