package client

import (
	"chat-backend/pkg/api"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNoConversation = errors.New("no conversation is open")

type EntryState int

const (
	Pending EntryState = iota
	Confirmed
	Failed
)

func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

// Entry is one line of the visible timeline. Messages loaded from the server
// are Confirmed and carry no Key. Messages sent from this session carry the
// Key they were registered under until the server copy replaces them.
type Entry struct {
	Key     uuid.UUID
	State   EntryState
	Message api.Message
}

type localEntry struct {
	key            uuid.UUID
	conversationId uint
	state          EntryState
	message        api.Message
	reply          *api.Message
}

// SendError is returned by Send when the server rejects a message. Content
// holds the text that was being sent so the caller can restore its input.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("message not sent: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Session holds the client side view of one user's chat: the open
// conversation, the selected agent and the message timeline. The timeline is
// always rebuilt from the server's getMessages response, with locally sent
// messages layered on top until the server confirms them.
type Session struct {
	client *Client
	user   api.User

	mu           sync.Mutex
	agentType    api.AgentType
	conversation *api.Conversation
	messages     []api.Message
	local        []*localEntry
}

func NewSession(client *Client, user api.User) *Session {
	return &Session{
		client:    client,
		user:      user,
		agentType: api.DefaultAgentType,
	}
}

func (s *Session) User() api.User {
	return s.user
}

func (s *Session) AgentType() api.AgentType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentType
}

func (s *Session) SetAgentType(agentType string) error {
	t := api.AgentType(agentType)
	if !t.Valid() {
		return fmt.Errorf("unknown agent type %q", agentType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentType = t
	return nil
}

// Conversation returns the open conversation, or nil when none is open.
func (s *Session) Conversation() *api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		return nil
	}
	c := *s.conversation
	return &c
}

func (s *Session) Conversations(ctx context.Context) ([]api.Conversation, error) {
	return s.client.GetConversations(ctx, s.user.Id)
}

// NewConversation creates a conversation and opens it.
func (s *Session) NewConversation(ctx context.Context, title *string) (api.Conversation, error) {
	conversation, err := s.client.CreateConversation(ctx, s.user.Id, title)
	if err != nil {
		return api.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = &conversation
	s.messages = nil
	s.local = nil
	return conversation, nil
}

// Open switches to one of the user's conversations and loads its messages.
func (s *Session) Open(ctx context.Context, conversationId uint) (api.Conversation, error) {
	conversations, err := s.client.GetConversations(ctx, s.user.Id)
	if err != nil {
		return api.Conversation{}, err
	}

	var found *api.Conversation
	for i := range conversations {
		if conversations[i].Id == conversationId {
			found = &conversations[i]
			break
		}
	}
	if found == nil {
		return api.Conversation{}, fmt.Errorf("conversation %d does not belong to %s", conversationId, s.user.Username)
	}

	messages, err := s.client.GetMessages(ctx, conversationId)
	if err != nil {
		return api.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = found
	s.messages = messages
	s.local = nil
	return *found, nil
}

func (s *Session) Rename(ctx context.Context, title string) (api.Conversation, error) {
	current := s.Conversation()
	if current == nil {
		return api.Conversation{}, ErrNoConversation
	}

	conversation, err := s.client.UpdateConversationTitle(ctx, current.Id, title)
	if err != nil {
		return api.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation != nil && s.conversation.Id == conversation.Id {
		s.conversation = &conversation
	}
	return conversation, nil
}

// Send shows content as a pending message, sends it with the selected agent
// and returns the assistant's reply. On success the timeline is reloaded from
// the server. On failure the entry is marked Failed, leaves the timeline and
// is reported by Failed until dismissed, and a *SendError carrying the
// content is returned.
func (s *Session) Send(ctx context.Context, content string) (api.Message, error) {
	s.mu.Lock()
	if s.conversation == nil {
		s.mu.Unlock()
		return api.Message{}, &SendError{Content: content, Err: ErrNoConversation}
	}
	entry := &localEntry{
		key:            uuid.New(),
		conversationId: s.conversation.Id,
		state:          Pending,
		message: api.Message{
			ConversationId: s.conversation.Id,
			Role:           "user",
			Content:        content,
			CreatedAt:      time.Now(),
		},
	}
	agentType := string(s.agentType)
	s.local = append(s.local, entry)
	s.mu.Unlock()

	reply, err := s.client.SendMessage(ctx, entry.conversationId, content, &agentType)
	if err != nil {
		s.mu.Lock()
		entry.state = Failed
		s.mu.Unlock()
		return api.Message{}, &SendError{Content: content, Err: err}
	}

	s.mu.Lock()
	entry.state = Confirmed
	entry.reply = &reply
	s.mu.Unlock()

	// If the reload fails the confirmed entry stays visible until the next
	// successful one.
	if err := s.refresh(ctx, entry.conversationId); err != nil {
		slog.Warn("error reloading messages after send", "conversation_id", entry.conversationId, "error", err)
	}

	return reply, nil
}

// Refresh reloads the open conversation's messages from the server.
func (s *Session) Refresh(ctx context.Context) error {
	current := s.Conversation()
	if current == nil {
		return ErrNoConversation
	}
	return s.refresh(ctx, current.Id)
}

func (s *Session) refresh(ctx context.Context, conversationId uint) error {
	messages, err := s.client.GetMessages(ctx, conversationId)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil || s.conversation.Id != conversationId {
		s.dropConfirmed(conversationId)
		return nil
	}
	s.messages = messages
	s.dropConfirmed(conversationId)
	return nil
}

func (s *Session) dropConfirmed(conversationId uint) {
	kept := s.local[:0]
	for _, e := range s.local {
		if e.conversationId == conversationId && e.state == Confirmed {
			continue
		}
		kept = append(kept, e)
	}
	s.local = kept
}

// Failed returns the messages of the open conversation that the server
// rejected, oldest first.
func (s *Session) Failed() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversation == nil {
		return nil
	}

	var failed []Entry
	for _, e := range s.local {
		if e.conversationId == s.conversation.Id && e.state == Failed {
			failed = append(failed, Entry{Key: e.key, State: e.state, Message: e.message})
		}
	}
	return failed
}

// Dismiss forgets a failed message. It reports whether key named one.
func (s *Session) Dismiss(key uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.local {
		if e.key == key && e.state == Failed {
			s.local = append(s.local[:i], s.local[i+1:]...)
			return true
		}
	}
	return false
}

// Timeline returns the server's messages for the open conversation followed
// by any messages sent from this session that the server copy does not yet
// include. Failed messages are left out.
func (s *Session) Timeline() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversation == nil {
		return nil
	}

	timeline := make([]Entry, 0, len(s.messages)+len(s.local))
	for _, m := range s.messages {
		timeline = append(timeline, Entry{State: Confirmed, Message: m})
	}
	for _, e := range s.local {
		if e.conversationId != s.conversation.Id || e.state == Failed {
			continue
		}
		timeline = append(timeline, Entry{Key: e.key, State: e.state, Message: e.message})
		if e.reply != nil {
			timeline = append(timeline, Entry{Key: e.key, State: e.state, Message: *e.reply})
		}
	}
	return timeline
}
