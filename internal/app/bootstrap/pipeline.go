package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const memoryQueueBuffer = 1024

// JobStore records and finishes queued turn jobs.
type JobStore interface {
	conversation.JobRecorder
	conversation.JobUpdater
}

// Pipeline is the queue between inbound channels and the conversation worker.
type Pipeline struct {
	Publisher *conversation.Publisher
	Jobs      JobStore
	Backend   string

	logger    *logging.Logger
	newWorker func(conversation.Service, conversation.ReplyMessenger, ...conversation.WorkerOption) *conversation.Worker
}

// InProcess reports whether the queue lives in this process, in which case
// the caller must also run the worker.
func (p *Pipeline) InProcess() bool {
	return p.Backend == "memory"
}

// Worker builds a worker that drains this pipeline's queue.
func (p *Pipeline) Worker(service conversation.Service, messenger conversation.ReplyMessenger, opts ...conversation.WorkerOption) *conversation.Worker {
	return p.newWorker(service, messenger, opts...)
}

// BuildPipeline selects SQS+DynamoDB when configured, otherwise an in-memory
// queue and job store. awsCfg may be nil.
func BuildPipeline(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	useSQS := cfg != nil && awsCfg != nil && !cfg.UseMemoryQueue && strings.TrimSpace(cfg.ConversationQueueURL) != ""

	var jobs JobStore = conversation.NewMemoryJobStore()
	if useSQS && strings.TrimSpace(cfg.ConversationJobsTable) != "" {
		jobs = conversation.NewJobStore(dynamodb.NewFromConfig(*awsCfg), cfg.ConversationJobsTable, logger)
	}

	p := &Pipeline{Jobs: jobs, logger: logger}
	if useSQS {
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.ConversationQueueURL)
		p.Backend = "sqs"
		p.Publisher = conversation.NewPublisher(queue, jobs, logger)
		p.newWorker = func(svc conversation.Service, m conversation.ReplyMessenger, opts ...conversation.WorkerOption) *conversation.Worker {
			return conversation.NewWorker(svc, queue, jobs, m, logger, opts...)
		}
	} else {
		queue := conversation.NewMemoryQueue(memoryQueueBuffer)
		p.Backend = "memory"
		p.Publisher = conversation.NewPublisher(queue, jobs, logger)
		p.newWorker = func(svc conversation.Service, m conversation.ReplyMessenger, opts ...conversation.WorkerOption) *conversation.Worker {
			return conversation.NewWorker(svc, queue, jobs, m, logger, opts...)
		}
	}
	logger.Info("conversation pipeline ready", "backend", p.Backend)
	return p
}

// WorkerOptions maps config onto worker tuning.
func WorkerOptions(cfg *appconfig.Config) []conversation.WorkerOption {
	if cfg == nil {
		return nil
	}
	opts := []conversation.WorkerOption{conversation.WithWorkerCount(cfg.WorkerCount)}
	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		opts = append(opts, conversation.WithReceiveWaitSeconds(1))
	}
	return opts
}
