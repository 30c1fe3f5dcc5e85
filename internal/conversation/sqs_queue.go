package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is a queueClient on Amazon SQS. FIFO queues (".fifo" suffix) get
// the customer id as message group so each customer's turns stay ordered.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	fifo     bool
}

// NewSQSQueue wraps an SQS client.
func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: sqs client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: sqs queue url cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

func (q *SQSQueue) Send(ctx context.Context, groupKey, body string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if q.fifo {
		if groupKey == "" {
			groupKey = "default"
		}
		in.MessageGroupId = aws.String(groupKey)
		in.MessageDeduplicationId = aws.String(uuid.NewString())
	}
	if _, err := q.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("conversation: sqs send: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: sqs receive: %w", err)
	}
	msgs := make([]queueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, queueMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("conversation: sqs delete: %w", err)
	}
	return nil
}
