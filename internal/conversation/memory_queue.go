package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process queueClient for local runs.
type MemoryQueue struct {
	ch chan queueMessage
}

// NewMemoryQueue creates a queue holding up to buffer pending jobs.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan queueMessage, buffer)}
}

// Send blocks while the buffer is full. The channel preserves global order,
// so groupKey needs no special handling.
func (q *MemoryQueue) Send(ctx context.Context, _ string, body string) error {
	id := uuid.NewString()
	select {
	case q.ch <- queueMessage{ID: id, Body: body, ReceiptHandle: id}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds for the first message, then drains
// whatever else is ready up to maxMessages.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case first = <-q.ch:
	}

	batch := []queueMessage{first}
	for len(batch) < maxMessages {
		select {
		case msg := <-q.ch:
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Delete is a no-op; received messages are already gone.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}

// Len reports queued jobs.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
