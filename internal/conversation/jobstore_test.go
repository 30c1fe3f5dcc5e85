package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	putInput    *dynamodb.PutItemInput
	updateInput *dynamodb.UpdateItemInput
	getOutput   *dynamodb.GetItemOutput
	err         error
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = in
	return &dynamodb.PutItemOutput{}, m.err
}

func (m *mockDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInput = in
	return &dynamodb.UpdateItemOutput{}, m.err
}

func (m *mockDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, m.err
	}
	return m.getOutput, m.err
}

func TestJobStore_PutPending(t *testing.T) {
	client := &mockDynamo{}
	store := NewJobStore(client, "salon-jobs", nil)
	store.now = fixedClock

	job := &JobRecord{JobID: "job-1", RequestType: jobTypeMessage, CustomerID: "c1"}
	require.NoError(t, store.PutPending(context.Background(), job))

	require.NotNil(t, client.putInput)
	assert.Equal(t, "salon-jobs", aws.ToString(client.putInput.TableName))
	assert.Equal(t, "attribute_not_exists(jobId)", aws.ToString(client.putInput.ConditionExpression))
	status := client.putInput.Item["status"].(*types.AttributeValueMemberS)
	assert.Equal(t, string(JobStatusPending), status.Value)
	assert.Equal(t, testNow.Add(jobTTL).Unix(), job.ExpiresAt)
}

func TestJobStore_MarkCompleted(t *testing.T) {
	client := &mockDynamo{}
	store := NewJobStore(client, "salon-jobs", nil)
	store.now = fixedClock

	err := store.MarkCompleted(context.Background(), "job-1", &TurnResult{CustomerID: "c1", Reply: "hi", Phase: PhaseGreeting})
	require.NoError(t, err)

	in := client.updateInput
	require.NotNil(t, in)
	assert.Equal(t, "attribute_exists(jobId)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, "errorMessage", in.ExpressionAttributeNames["#error"])
	status := in.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS)
	assert.Equal(t, string(JobStatusCompleted), status.Value)
	_, isMap := in.ExpressionAttributeValues[":result"].(*types.AttributeValueMemberM)
	assert.True(t, isMap)
}

func TestJobStore_MarkFailedWrapsError(t *testing.T) {
	client := &mockDynamo{err: errors.New("conditional check failed")}
	store := NewJobStore(client, "salon-jobs", nil)

	err := store.MarkFailed(context.Background(), "job-1", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-1")
	assert.Error(t, store.MarkFailed(context.Background(), "", "boom"))
}

func TestJobStore_GetJob(t *testing.T) {
	item, err := attributevalue.MarshalMap(JobRecord{
		JobID:     "job-1",
		Status:    JobStatusCompleted,
		Result:    &TurnResult{Reply: "done"},
		CreatedAt: testNow.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	store := NewJobStore(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}, "salon-jobs", nil)

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "done", job.Result.Reply)

	_, err = NewJobStore(&mockDynamo{}, "salon-jobs", nil).GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryJobStore_Lifecycle(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	require.NoError(t, store.PutPending(ctx, &JobRecord{JobID: "j1"}))
	assert.Error(t, store.PutPending(ctx, &JobRecord{JobID: "j1"}), "duplicate ids rejected")

	require.NoError(t, store.MarkFailed(ctx, "j1", "nope"))
	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "nope", job.ErrorMessage)

	assert.ErrorIs(t, store.MarkCompleted(ctx, "j2", nil), ErrJobNotFound)
}
