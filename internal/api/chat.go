package api

import (
	"chat-backend/internal/chat"
	"chat-backend/pkg/api"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type ChatService struct {
	chat *chat.Service
}

func NewChatService(service *chat.Service) *ChatService {
	return &ChatService{chat: service}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/trpc", func(r chi.Router) {
		r.NotFound(RPCHandler(unknownProcedure))
		r.MethodNotAllowed(RPCHandler(methodNotSupported))

		r.Get("/"+api.ProcHealthcheck, RPCHandler(s.Healthcheck))
		r.Get("/"+api.ProcGetConversations, RPCHandler(s.GetConversations))
		r.Get("/"+api.ProcGetMessages, RPCHandler(s.GetMessages))

		r.Post("/"+api.ProcCreateUser, RPCHandler(s.CreateUser))
		r.Post("/"+api.ProcCreateConversation, RPCHandler(s.CreateConversation))
		r.Post("/"+api.ProcUpdateConversationTitle, RPCHandler(s.UpdateConversationTitle))
		r.Post("/"+api.ProcSendMessage, RPCHandler(s.SendMessage))
	})
}

func unknownProcedure(r *http.Request) (any, error) {
	return nil, CodedErrorf(http.StatusNotFound, "no procedure found on path '%s'", r.URL.Path)
}

func methodNotSupported(r *http.Request) (any, error) {
	return nil, CodedErrorf(http.StatusMethodNotAllowed, "unsupported %s request to '%s'", r.Method, r.URL.Path)
}

// serviceError attaches a status code to errors returned by the chat service.
// Anything not tagged with one of its sentinels is an internal error.
func serviceError(err error) error {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		return CodedError(http.StatusBadRequest, err)
	case errors.Is(err, chat.ErrNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, chat.ErrConflict), errors.Is(err, chat.ErrConstraint):
		return CodedError(http.StatusConflict, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func (s *ChatService) Healthcheck(r *http.Request) (any, error) {
	return api.HealthResponse{Status: "ok", Timestamp: time.Now().UTC()}, nil
}

func (s *ChatService) CreateUser(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateUserRequest](r)
	if err != nil {
		return nil, err
	}

	user, err := s.chat.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertUser(user), nil
}

func (s *ChatService) CreateConversation(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateConversationRequest](r)
	if err != nil {
		return nil, err
	}

	conversation, err := s.chat.CreateConversation(r.Context(), req.UserId, req.Title)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertConversation(conversation), nil
}

func (s *ChatService) GetConversations(r *http.Request) (any, error) {
	req, err := ParseQueryInput[api.GetConversationsRequest](r)
	if err != nil {
		return nil, err
	}

	conversations, err := s.chat.GetConversations(r.Context(), req.UserId)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertConversations(conversations), nil
}

func (s *ChatService) UpdateConversationTitle(r *http.Request) (any, error) {
	req, err := ParseRequest[api.UpdateConversationTitleRequest](r)
	if err != nil {
		return nil, err
	}

	conversation, err := s.chat.UpdateConversationTitle(r.Context(), req.ConversationId, *req.Title)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertConversation(conversation), nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SendMessageRequest](r)
	if err != nil {
		return nil, err
	}

	reply, err := s.chat.SendMessage(r.Context(), req.ConversationId, req.Content, req.AiAgentType)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertMessage(reply), nil
}

func (s *ChatService) GetMessages(r *http.Request) (any, error) {
	req, err := ParseQueryInput[api.GetMessagesRequest](r)
	if err != nil {
		return nil, err
	}

	messages, err := s.chat.GetMessages(r.Context(), req.ConversationId)
	if err != nil {
		return nil, serviceError(err)
	}

	return convertMessages(messages), nil
}
