package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	taskType string
	payload  []byte

	acked, nacked, rejected int
}

func (t *fakeTask) Type() string    { return t.taskType }
func (t *fakeTask) Payload() []byte { return t.payload }
func (t *fakeTask) Ack() error      { t.acked++; return nil }
func (t *fakeTask) Nack() error     { t.nacked++; return nil }
func (t *fakeTask) Reject() error   { t.rejected++; return nil }

func mustMarshal(t *testing.T, v any) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestProcessTask(t *testing.T) {
	okHandler := func(ctx context.Context, payload MessageCreatedPayload) error { return nil }
	failHandler := func(ctx context.Context, payload MessageCreatedPayload) error { return errors.New("boom") }

	valid := mustMarshal(t, MessageCreatedPayload{EventId: uuid.New(), MessageId: 1, ConversationId: 1, Role: "user"})

	tests := []struct {
		name                    string
		handler                 MessageCreatedHandler
		task                    *fakeTask
		acked, nacked, rejected int
	}{
		{name: "success", handler: okHandler, task: &fakeTask{taskType: MessageEventsQueue, payload: valid}, acked: 1},
		{name: "handler error", handler: failHandler, task: &fakeTask{taskType: MessageEventsQueue, payload: valid}, nacked: 1},
		{name: "bad payload", handler: okHandler, task: &fakeTask{taskType: MessageEventsQueue, payload: []byte("{")}, rejected: 1},
		{name: "unknown type", handler: okHandler, task: &fakeTask{taskType: "other", payload: valid}, rejected: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			worker := NewWorker(NewInMemoryQueue(), tc.handler)
			worker.ProcessTask(tc.task)
			assert.Equal(t, tc.acked, tc.task.acked)
			assert.Equal(t, tc.nacked, tc.task.nacked)
			assert.Equal(t, tc.rejected, tc.task.rejected)
		})
	}
}

func TestWorkerConsumesQueue(t *testing.T) {
	queue := NewInMemoryQueue()

	var mu sync.Mutex
	var received []uint
	worker := NewWorker(queue, func(ctx context.Context, payload MessageCreatedPayload) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload.MessageId)
		return nil
	})
	go worker.Start()

	for i := uint(1); i <= 3; i++ {
		require.NoError(t, queue.PublishMessageCreated(context.Background(), MessageCreatedPayload{MessageId: i, ConversationId: 1}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, time.Second, 10*time.Millisecond)

	worker.Stop()
	worker.Stop()

	select {
	case <-worker.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint{1, 2, 3}, received)
}

func TestLogMessageCreated(t *testing.T) {
	assert.NoError(t, LogMessageCreated(context.Background(), MessageCreatedPayload{EventId: uuid.New(), MessageId: 1, ConversationId: 2, Role: "user"}))
	assert.Error(t, LogMessageCreated(context.Background(), MessageCreatedPayload{EventId: uuid.New(), Role: "user"}))
}
