package conversation

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// ErrWorkerClosed is returned when a job is dispatched after shutdown began.
var ErrWorkerClosed = errors.New("conversation: worker closed")

const (
	defaultWorkerCount   = 4
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	replyTimeout         = 10 * time.Second
	turnTimeout          = 90 * time.Second
)

// Worker polls the queue and runs turns. Jobs are sharded by customer id so
// one customer's messages run in arrival order while different customers
// proceed in parallel.
type Worker struct {
	service   Service
	queue     queueClient
	jobs      JobUpdater
	messenger ReplyMessenger
	logger    *logging.Logger
	cfg       workerConfig

	mu     sync.RWMutex
	closed bool
	shards []chan shardJob
	wg     sync.WaitGroup
}

type shardJob struct {
	payload queuePayload
	receipt string
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of customer shards.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
	}
}

// WithReceiveBatchSize sets how many messages one poll may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
		}
	}
}

// NewWorker builds a worker. jobs and messenger may be nil.
func NewWorker(service Service, queue queueClient, jobs JobUpdater, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{service: service, queue: queue, jobs: jobs, messenger: messenger, logger: logger, cfg: cfg}
}

// Start launches the poller and the shard goroutines. They stop when ctx is
// cancelled; queued jobs already dispatched to a shard still finish.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.shards = make([]chan shardJob, w.cfg.workers)
	for i := range w.shards {
		w.shards[i] = make(chan shardJob, w.cfg.receiveBatchSize*2)
		w.wg.Add(1)
		go w.runShard(ctx, i, w.shards[i])
	}
	w.mu.Unlock()

	w.wg.Add(1)
	go w.poll(ctx)
}

// Wait blocks until all goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context) {
	defer w.wg.Done()
	defer w.close()
	w.logger.Debug("conversation worker polling", "shards", w.cfg.workers)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 5*time.Second)
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			payload, err := decodePayload(msg.Body)
			if err != nil {
				w.logger.Error("dropping undecodable job", "error", err, "msg_id", msg.ID)
				w.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}
			if err := w.dispatch(ctx, shardJob{payload: payload, receipt: msg.ReceiptHandle}); err != nil {
				// left on the queue for redelivery
				w.logger.Warn("job not dispatched", "job_id", payload.ID, "error", err)
				return
			}
		}
	}
}

func shardFor(customerID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(customerID))
	return int(h.Sum32() % uint32(shards))
}

func (w *Worker) dispatch(ctx context.Context, job shardJob) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed || len(w.shards) == 0 {
		return ErrWorkerClosed
	}
	ch := w.shards[shardFor(job.payload.Message.CustomerID, len(w.shards))]
	select {
	case ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, ch := range w.shards {
		close(ch)
	}
}

func (w *Worker) runShard(ctx context.Context, id int, jobs <-chan shardJob) {
	defer w.wg.Done()
	// turns are not cancelled mid-flight; an order submission must finish
	base := context.WithoutCancel(ctx)
	for job := range jobs {
		jobCtx, cancel := context.WithTimeout(base, turnTimeout)
		w.handle(jobCtx, job)
		cancel()
	}
	w.logger.Debug("conversation shard stopped", "shard", id)
}

func (w *Worker) handle(ctx context.Context, job shardJob) {
	p := job.payload
	defer w.deleteMessage(ctx, job.receipt)

	result, err := w.service.HandleMessage(ctx, p.Message)
	if err != nil {
		w.logger.Error("turn failed", "job_id", p.ID, "customer_id", p.Message.CustomerID, "error", err)
		jobsProcessed.WithLabelValues(string(JobStatusFailed)).Inc()
		if p.TrackStatus && w.jobs != nil {
			if storeErr := w.jobs.MarkFailed(ctx, p.ID, err.Error()); storeErr != nil {
				w.logger.Error("failed to update job status", "error", storeErr, "job_id", p.ID)
			}
		}
		if result.Reply == "" {
			result.Reply = localize(result.Language, msgGenericError)
		}
		w.reply(ctx, p, result.Reply)
		return
	}

	w.reply(ctx, p, result.Reply)
	jobsProcessed.WithLabelValues(string(JobStatusCompleted)).Inc()
	if p.TrackStatus && w.jobs != nil {
		if err := w.jobs.MarkCompleted(ctx, p.ID, &result); err != nil {
			w.logger.Error("failed to update job status", "error", err, "job_id", p.ID)
		}
	}
}

func (w *Worker) reply(ctx context.Context, p queuePayload, body string) {
	if w.messenger == nil || body == "" {
		return
	}
	to := p.Message.Phone
	if to == "" {
		to = p.Message.CustomerID
	}
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	err := w.messenger.SendReply(sendCtx, OutboundReply{
		CustomerID: p.Message.CustomerID,
		To:         to,
		Body:       body,
		Channel:    p.Message.Channel,
		Metadata:   map[string]string{"job_id": p.ID, "in_reply_to": p.Message.MessageID},
	})
	if err != nil {
		w.logger.Error("failed to send reply", "error", err, "job_id", p.ID, "customer_id", p.Message.CustomerID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(delCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
