package client

import (
	"chat-backend/pkg/api"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 30 * time.Second

// RPCError is returned when the server answers with an error envelope.
type RPCError struct {
	Code       string
	HTTPStatus int
	Message    string
	Fields     []api.FieldError
}

func (e *RPCError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	fields := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(fields, "; "))
}

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}
}

func call[T any](ctx context.Context, c *Client, method, procedure string, input any) (T, error) {
	var zero T

	req := c.client.R().SetContext(ctx)
	if method == http.MethodGet {
		if input != nil {
			data, err := json.Marshal(input)
			if err != nil {
				return zero, fmt.Errorf("error encoding %s input: %w", procedure, err)
			}
			req.SetQueryParam("input", string(data))
		}
	} else {
		req.SetHeader("Content-Type", "application/json").SetBody(input)
	}

	res, err := req.Execute(method, "/trpc/"+procedure)
	if err != nil {
		return zero, fmt.Errorf("error calling %s: %w", procedure, err)
	}

	var env api.Envelope[T]
	if err := json.Unmarshal(res.Body(), &env); err != nil {
		return zero, fmt.Errorf("error parsing %s response (status %d): %w", procedure, res.StatusCode(), err)
	}

	if env.Error != nil {
		return zero, &RPCError{
			Code:       env.Error.Code,
			HTTPStatus: env.Error.HTTPStatus,
			Message:    env.Error.Message,
			Fields:     env.Error.Fields,
		}
	}
	if env.Result == nil || !res.IsSuccess() {
		return zero, fmt.Errorf("unexpected %s response with status %d", procedure, res.StatusCode())
	}

	return env.Result.Data, nil
}

func (c *Client) Healthcheck(ctx context.Context) (api.HealthResponse, error) {
	return call[api.HealthResponse](ctx, c, http.MethodGet, api.ProcHealthcheck, nil)
}

func (c *Client) CreateUser(ctx context.Context, username, email string) (api.User, error) {
	return call[api.User](ctx, c, http.MethodPost, api.ProcCreateUser, api.CreateUserRequest{Username: username, Email: email})
}

func (c *Client) CreateConversation(ctx context.Context, userId uint, title *string) (api.Conversation, error) {
	return call[api.Conversation](ctx, c, http.MethodPost, api.ProcCreateConversation, api.CreateConversationRequest{UserId: userId, Title: title})
}

func (c *Client) GetConversations(ctx context.Context, userId uint) ([]api.Conversation, error) {
	return call[[]api.Conversation](ctx, c, http.MethodGet, api.ProcGetConversations, api.GetConversationsRequest{UserId: userId})
}

func (c *Client) UpdateConversationTitle(ctx context.Context, conversationId uint, title string) (api.Conversation, error) {
	return call[api.Conversation](ctx, c, http.MethodPost, api.ProcUpdateConversationTitle, api.UpdateConversationTitleRequest{ConversationId: conversationId, Title: &title})
}

func (c *Client) SendMessage(ctx context.Context, conversationId uint, content string, agentType *string) (api.Message, error) {
	return call[api.Message](ctx, c, http.MethodPost, api.ProcSendMessage, api.SendMessageRequest{ConversationId: conversationId, Content: content, AiAgentType: agentType})
}

func (c *Client) GetMessages(ctx context.Context, conversationId uint) ([]api.Message, error) {
	return call[[]api.Message](ctx, c, http.MethodGet, api.ProcGetMessages, api.GetMessagesRequest{ConversationId: conversationId})
}
