package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// queueClient moves encoded turn jobs between the webhook and the worker.
// groupKey keeps one customer's jobs in order on queues that support it.
type queueClient interface {
	Send(ctx context.Context, groupKey, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const jobTypeMessage jobType = "message"

type queuePayload struct {
	ID          string    `json:"id"`
	Kind        jobType   `json:"kind"`
	Message     Inbound   `json:"message"`
	TrackStatus bool      `json:"track_status"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// PublishOption adjusts a job before it is enqueued.
type PublishOption func(*queuePayload)

// WithoutJobTracking skips job status persistence.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

// WithJobID sets the job id instead of generating one.
func WithJobID(id string) PublishOption {
	return func(p *queuePayload) {
		if id != "" {
			p.ID = id
		}
	}
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: encode job: %w", err)
	}
	return payload, string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var p queuePayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return queuePayload{}, fmt.Errorf("conversation: decode job: %w", err)
	}
	if p.Kind != jobTypeMessage {
		return queuePayload{}, fmt.Errorf("conversation: unknown job kind %q", p.Kind)
	}
	return p, nil
}
