package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Publisher enqueues customer turns for the worker.
type Publisher struct {
	queue  queueClient
	jobs   JobRecorder
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. jobs may be nil.
func NewPublisher(queue queueClient, jobs JobRecorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// EnqueueMessage queues one inbound message and returns its job id.
func (p *Publisher) EnqueueMessage(ctx context.Context, in Inbound, opts ...PublishOption) (string, error) {
	payload := queuePayload{Kind: jobTypeMessage, Message: in, TrackStatus: p.jobs != nil}
	for _, opt := range opts {
		opt(&payload)
	}
	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	if payload.TrackStatus && p.jobs != nil {
		if err := p.jobs.PutPending(ctx, &JobRecord{
			JobID:       payload.ID,
			RequestType: payload.Kind,
			CustomerID:  in.CustomerID,
		}); err != nil {
			return "", fmt.Errorf("conversation: record pending job: %w", err)
		}
	}
	if err := p.queue.Send(ctx, in.CustomerID, body); err != nil {
		return "", fmt.Errorf("conversation: enqueue job: %w", err)
	}
	p.logger.Debug("turn enqueued", "job_id", payload.ID, "customer_id", in.CustomerID)
	return payload.ID, nil
}
