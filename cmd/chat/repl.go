package main

import (
	"bufio"
	"chat-backend/pkg/api"
	"chat-backend/pkg/client"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const helpText = `commands:
  /new [title]     start a conversation
  /list            list your conversations
  /open <id>       open a conversation
  /rename <title>  rename the open conversation
  /agent <type>    select the agent (%s)
  /help            show this message
  /quit            exit
anything else is sent as a message`

type repl struct {
	session *client.Session
	out     io.Writer
}

func newRepl(session *client.Session, out io.Writer) *repl {
	return &repl{session: session, out: out}
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) prompt() {
	if c := r.session.Conversation(); c != nil {
		r.printf("[%d %s] > ", c.Id, r.session.AgentType())
	} else {
		r.printf("[%s] > ", r.session.AgentType())
	}
}

// Run reads lines from in until EOF or /quit. Errors from individual
// commands are printed and do not stop the loop.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	r.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			r.prompt()
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := r.handle(ctx, line); err != nil {
			r.printf("error: %v\n", err)
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *repl) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/help":
		r.printf(helpText+"\n", agentList())
		return nil
	case "/new":
		var title *string
		if arg != "" {
			title = &arg
		}
		conversation, err := r.session.NewConversation(ctx, title)
		if err != nil {
			return err
		}
		r.printf("opened conversation %d %s\n", conversation.Id, conversationTitle(conversation))
		return nil
	case "/list":
		conversations, err := r.session.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(conversations) == 0 {
			r.printf("no conversations yet, start one with /new\n")
			return nil
		}
		for _, c := range conversations {
			r.printf("%5d  %-40s  %s\n", c.Id, conversationTitle(c), c.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	case "/open":
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /open <id>")
		}
		conversation, err := r.session.Open(ctx, uint(id))
		if err != nil {
			return err
		}
		r.printf("opened conversation %d %s\n", conversation.Id, conversationTitle(conversation))
		r.printTimeline()
		return nil
	case "/rename":
		if arg == "" {
			return fmt.Errorf("usage: /rename <title>")
		}
		conversation, err := r.session.Rename(ctx, arg)
		if err != nil {
			return err
		}
		r.printf("renamed conversation %d to %s\n", conversation.Id, conversationTitle(conversation))
		return nil
	case "/agent":
		if arg == "" {
			r.printf("current agent: %s (available: %s)\n", r.session.AgentType(), agentList())
			return nil
		}
		if err := r.session.SetAgentType(arg); err != nil {
			return fmt.Errorf("%w (available: %s)", err, agentList())
		}
		r.printf("agent set to %s\n", arg)
		return nil
	default:
		return fmt.Errorf("unknown command %s, try /help", command)
	}
}

func (r *repl) send(ctx context.Context, content string) error {
	reply, err := r.session.Send(ctx, content)
	if err != nil {
		var sendErr *client.SendError
		if errors.As(err, &sendErr) && errors.Is(err, client.ErrNoConversation) {
			return fmt.Errorf("no conversation is open, use /new or /open <id> first")
		}
		if errors.As(err, &sendErr) {
			for _, failed := range r.session.Failed() {
				r.printf("not sent, your message was: %s\n", failed.Message.Content)
				r.session.Dismiss(failed.Key)
			}
		}
		return err
	}
	r.printMessage(reply)
	return nil
}

func (r *repl) printTimeline() {
	timeline := r.session.Timeline()
	if len(timeline) == 0 {
		r.printf("(no messages)\n")
		return
	}
	for _, entry := range timeline {
		r.printMessage(entry.Message)
	}
}

func (r *repl) printMessage(m api.Message) {
	speaker := "you"
	if m.Role != "user" {
		speaker = m.Role
		if m.AiAgentType != nil {
			speaker = *m.AiAgentType
		}
	}
	r.printf("%s  %s: %s\n", m.CreatedAt.Local().Format("15:04"), speaker, m.Content)
}

func conversationTitle(c api.Conversation) string {
	if c.Title == nil {
		return "(untitled)"
	}
	return *c.Title
}

func agentList() string {
	names := make([]string, 0, len(api.AgentTypes()))
	for _, t := range api.AgentTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
