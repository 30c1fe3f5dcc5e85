package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const jobTTL = 24 * time.Hour

// JobStatus tracks a queued turn.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the job id is unknown.
var ErrJobNotFound = errors.New("conversation: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord is the stored status of one queued turn.
type JobRecord struct {
	JobID        string      `dynamodbav:"jobId" json:"jobId"`
	Status       JobStatus   `dynamodbav:"status" json:"status"`
	RequestType  jobType     `dynamodbav:"requestType" json:"requestType"`
	CustomerID   string      `dynamodbav:"customerId,omitempty" json:"customerId,omitempty"`
	Result       *TurnResult `dynamodbav:"result,omitempty" json:"result,omitempty"`
	ErrorMessage string      `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    string      `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string      `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt    int64       `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// JobRecorder creates and reads job records.
type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// JobUpdater finishes job records.
type JobUpdater interface {
	MarkCompleted(ctx context.Context, jobID string, result *TurnResult) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// JobStore keeps job records in DynamoDB with a TTL attribute.
type JobStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
	logger    *logging.Logger
}

var (
	_ JobRecorder = (*JobStore)(nil)
	_ JobUpdater  = (*JobStore)(nil)
)

// NewJobStore builds a DynamoDB-backed store.
func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{client: client, tableName: tableName, now: time.Now, logger: logger}
}

func (s *JobStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// PutPending inserts a pending record; an existing id is never overwritten.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("conversation: job cannot be nil")
	}
	preparePending(job, s.now())
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("conversation: marshal job: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	}); err != nil {
		return fmt.Errorf("conversation: persist job: %w", err)
	}
	return nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, result *TurnResult) error {
	if jobID == "" {
		return errors.New("conversation: jobID required")
	}
	if result == nil {
		result = &TurnResult{}
	}
	resultAttr, err := attributevalue.Marshal(result)
	if err != nil {
		return fmt.Errorf("conversation: marshal result: %w", err)
	}
	return s.update(ctx, jobID, "SET #status = :status, #result = :result, #error = :error, #updated = :updated",
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":result":  resultAttr,
			":error":   &types.AttributeValueMemberS{Value: ""},
			":updated": &types.AttributeValueMemberS{Value: s.stamp()},
		})
}

func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("conversation: jobID required")
	}
	return s.update(ctx, jobID, "SET #status = :status, #result = :result, #error = :error, #updated = :updated",
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":result":  &types.AttributeValueMemberNULL{Value: true},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: s.stamp()},
		})
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("conversation: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"jobId": &types.AttributeValueMemberS{Value: jobID}},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("conversation: decode job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) update(ctx context.Context, jobID, expression string, values map[string]types.AttributeValue) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"jobId": &types.AttributeValueMemberS{Value: jobID}},
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#result":  "result",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: values,
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("conversation: update job %s: %w", jobID, err)
	}
	return nil
}

func preparePending(job *JobRecord, now time.Time) {
	now = now.UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}
}

// MemoryJobStore tracks jobs in process for local mode.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]JobRecord
	now  func() time.Time
}

var (
	_ JobRecorder = (*MemoryJobStore)(nil)
	_ JobUpdater  = (*MemoryJobStore)(nil)
)

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]JobRecord), now: time.Now}
}

func (m *MemoryJobStore) PutPending(_ context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("conversation: job cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.JobID]; exists {
		return fmt.Errorf("conversation: job %s already exists", job.JobID)
	}
	preparePending(job, m.now())
	m.jobs[job.JobID] = *job
	return nil
}

func (m *MemoryJobStore) GetJob(_ context.Context, jobID string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (m *MemoryJobStore) MarkCompleted(_ context.Context, jobID string, result *TurnResult) error {
	return m.finish(jobID, func(j *JobRecord) {
		j.Status = JobStatusCompleted
		j.Result = result
		j.ErrorMessage = ""
	})
}

func (m *MemoryJobStore) MarkFailed(_ context.Context, jobID string, errMsg string) error {
	return m.finish(jobID, func(j *JobRecord) {
		j.Status = JobStatusFailed
		j.Result = nil
		j.ErrorMessage = errMsg
	})
}

func (m *MemoryJobStore) finish(jobID string, apply func(*JobRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	apply(&job)
	job.UpdatedAt = m.now().UTC().Format(time.RFC3339Nano)
	m.jobs[jobID] = job
	return nil
}
