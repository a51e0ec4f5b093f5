package client_test

import (
	"chat-backend/internal/agents"
	chatapi "chat-backend/internal/api"
	"chat-backend/internal/chat"
	"chat-backend/internal/database"
	"chat-backend/pkg/api"
	"chat-backend/pkg/client"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func startServer(t *testing.T, wrap func(http.Handler) http.Handler) (*client.Client, *gorm.DB) {
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)

	router := chi.NewRouter()
	chatapi.NewChatService(chat.NewService(db, agents.NewTemplateResponder(), nil, false)).AddRoutes(router)

	var handler http.Handler = router
	if wrap != nil {
		handler = wrap(router)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return client.New(server.URL), db
}

func strPtr(s string) *string {
	return &s
}

func TestClientProcedures(t *testing.T) {
	c, _ := startServer(t, nil)
	ctx := context.Background()

	health, err := c.Healthcheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	user, err := c.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.Id)

	conversation, err := c.CreateConversation(ctx, user.Id, strPtr("Dinner"))
	require.NoError(t, err)
	require.NotNil(t, conversation.Title)
	assert.Equal(t, "Dinner", *conversation.Title)

	reply, err := c.SendMessage(ctx, conversation.Id, "any vegetarian recipe ideas?", strPtr("meal_planning"))
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, agents.Select("any vegetarian recipe ideas?", agents.MealPlanning), reply.Content)

	messages, err := c.GetMessages(ctx, conversation.Id)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	renamed, err := c.UpdateConversationTitle(ctx, conversation.Id, "Veggie dinner")
	require.NoError(t, err)
	assert.Equal(t, "Veggie dinner", *renamed.Title)

	conversations, err := c.GetConversations(ctx, user.Id)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Veggie dinner", *conversations[0].Title)
}

func TestClientErrors(t *testing.T) {
	c, _ := startServer(t, nil)
	ctx := context.Background()

	_, err := c.CreateUser(ctx, "alice", "not-an-email")
	var rpcErr *client.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, api.CodeBadRequest, rpcErr.Code)
	assert.Equal(t, http.StatusBadRequest, rpcErr.HTTPStatus)
	require.Len(t, rpcErr.Fields, 1)
	assert.Equal(t, "email", rpcErr.Fields[0].Field)

	_, err = c.UpdateConversationTitle(ctx, 31337, "nope")
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, api.CodeNotFound, rpcErr.Code)
	assert.Equal(t, "Conversation with id 31337 not found", rpcErr.Message)
}

func TestSessionSendConfirmed(t *testing.T) {
	release := make(chan struct{})
	c, _ := startServer(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/trpc/"+api.ProcSendMessage {
				<-release
			}
			next.ServeHTTP(w, r)
		})
	})
	ctx := context.Background()

	user, err := c.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)

	session := client.NewSession(c, user)
	require.NoError(t, session.SetAgentType("travel_planning"))
	assert.Error(t, session.SetAgentType("astrology"))
	assert.Equal(t, api.AgentTravelPlanning, session.AgentType())

	conversation, err := session.NewConversation(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, session.Timeline())

	type result struct {
		reply api.Message
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := session.Send(ctx, "help me plan a trip to Lisbon")
		done <- result{reply, err}
	}()

	require.Eventually(t, func() bool {
		timeline := session.Timeline()
		return len(timeline) == 1 && timeline[0].State == client.Pending
	}, time.Second, 5*time.Millisecond)

	pending := session.Timeline()[0]
	assert.Equal(t, "help me plan a trip to Lisbon", pending.Message.Content)
	assert.NotEqual(t, uuid.Nil, pending.Key)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.reply.AiAgentType)
	assert.Equal(t, "travel_planning", *res.reply.AiAgentType)

	messages, err := c.GetMessages(ctx, conversation.Id)
	require.NoError(t, err)

	timeline := session.Timeline()
	require.Len(t, timeline, len(messages))
	for i, entry := range timeline {
		assert.Equal(t, client.Confirmed, entry.State)
		assert.Equal(t, uuid.Nil, entry.Key)
		assert.Equal(t, messages[i].Id, entry.Message.Id)
	}
}

func TestSessionSendFailed(t *testing.T) {
	c, db := startServer(t, nil)
	ctx := context.Background()

	user, err := c.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)

	session := client.NewSession(c, user)

	_, err = session.Send(ctx, "hello?")
	var sendErr *client.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, client.ErrNoConversation)
	assert.Equal(t, "hello?", sendErr.Content)

	conversation, err := session.NewConversation(ctx, strPtr("doomed"))
	require.NoError(t, err)
	_, err = session.Send(ctx, "first")
	require.NoError(t, err)
	require.Len(t, session.Timeline(), 2)

	require.NoError(t, db.Delete(&database.Conversation{}, conversation.Id).Error)

	_, err = session.Send(ctx, "this will not arrive")
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "this will not arrive", sendErr.Content)
	var rpcErr *client.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, api.CodeConflict, rpcErr.Code)

	timeline := session.Timeline()
	require.Len(t, timeline, 2)
	for _, entry := range timeline {
		assert.NotEqual(t, "this will not arrive", entry.Message.Content)
	}

	failed := session.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, client.Failed, failed[0].State)
	assert.Equal(t, "this will not arrive", failed[0].Message.Content)
	assert.NotEqual(t, uuid.Nil, failed[0].Key)

	assert.True(t, session.Dismiss(failed[0].Key))
	assert.False(t, session.Dismiss(failed[0].Key))
	assert.Empty(t, session.Failed())
	assert.Len(t, session.Timeline(), 2)
}

func TestSessionOpenAndRename(t *testing.T) {
	c, _ := startServer(t, nil)
	ctx := context.Background()

	alice, err := c.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := c.CreateUser(ctx, "bob", "bob@example.com")
	require.NoError(t, err)

	bobs, err := c.CreateConversation(ctx, bob.Id, nil)
	require.NoError(t, err)
	first, err := c.CreateConversation(ctx, alice.Id, strPtr("first"))
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, first.Id, "hello", nil)
	require.NoError(t, err)

	session := client.NewSession(c, alice)
	assert.Nil(t, session.Conversation())
	_, err = session.Rename(ctx, "nothing open")
	assert.ErrorIs(t, err, client.ErrNoConversation)

	_, err = session.Open(ctx, bobs.Id)
	assert.Error(t, err)

	opened, err := session.Open(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Id, opened.Id)
	assert.Len(t, session.Timeline(), 2)

	renamed, err := session.Rename(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", *renamed.Title)
	assert.Equal(t, "renamed", *session.Conversation().Title)

	conversations, err := session.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "renamed", *conversations[0].Title)
}
