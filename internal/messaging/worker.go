package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// MessageCreatedHandler is invoked for every MessageCreated event the worker
// receives. Returning an error drops the event.
type MessageCreatedHandler func(ctx context.Context, payload MessageCreatedPayload) error

type Worker struct {
	reciever Reciever
	handler  MessageCreatedHandler

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewWorker(reciever Reciever, handler MessageCreatedHandler) *Worker {
	return &Worker{
		reciever: reciever,
		handler:  handler,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks until the receiver's task channel is closed or Stop is called.
func (w *Worker) Start() {
	slog.Info("starting message event worker")
	defer close(w.done)

	tasks := w.reciever.Tasks()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.ProcessTask(task)
		case <-w.stop:
			return
		}
	}
}

// Stop closes the receiver and signals Start to return.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("stopping message event worker")
		w.reciever.Close()
		close(w.stop)
	})
}

// Done is closed once Start has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) ProcessTask(task Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {
	case MessageEventsQueue:
		var payload MessageCreatedPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling message created payload", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting task", "error", err)
			}
			return
		}
		err = w.handler(ctx, payload)
	default:
		slog.Error("received invalid task type", "type", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "type", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "type", task.Type(), "error", err)
	}
}

// LogMessageCreated records each event in the structured log.
func LogMessageCreated(ctx context.Context, payload MessageCreatedPayload) error {
	agent := ""
	if payload.AiAgentType != nil {
		agent = *payload.AiAgentType
	}
	if payload.MessageId == 0 || payload.ConversationId == 0 {
		return fmt.Errorf("message created event %s is missing ids", payload.EventId)
	}
	slog.Info("message created", "event_id", payload.EventId, "message_id", payload.MessageId,
		"conversation_id", payload.ConversationId, "role", payload.Role, "ai_agent_type", agent,
		"created_at", payload.CreatedAt)
	return nil
}
