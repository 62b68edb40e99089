package refunds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/config"
	"github.com/nimasrn/vtu-gateway/internal/queue"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
	"github.com/nimasrn/vtu-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 10
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

const consumerInstances = 4
const workerPoolSize = 50

// Processor handles one queue message.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// Service consumes the refund queue: messages fan out to a worker pool
// and each one is applied by the registered processor.
type Service struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewService(redisAdapter redis.RedisAdapter) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	service := &Service{
		adapter: redisAdapter,
		queues:  make([]*queue.Queue, 0),
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, workerPoolSize, nil),
	}
	return service, nil
}

func (s *Service) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered refund processor", "type", processor.GetType())
}

func (s *Service) Start() error {
	logger.Info("starting refund reconciler...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < consumerInstances; i++ {
		queueConfig := queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      config.Get().QueueConsumerName,
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		}
		queueConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", queueConfig.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
		logger.Info("started refund consumer", "instance", i)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("refund reconciler started", "consumers", len(s.queues), "workers", workerPoolSize)
	return nil
}

func (s *Service) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) reportMetrics() {
	stats := s.metrics.GetStats()

	logger.Info("refund reconciler metrics",
		"total_applied", stats["total_applied"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("refund queue stats", "queue", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *Service) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "queue", i, "error", err)
			continue
		}

		// A backed-up refund queue means users are waiting for money.
		if stats.PendingMessages > 1000 {
			logger.Warn("health check: refund queue has high lag", "queue", i, "pending_messages", stats.PendingMessages)
		}
	}

	logger.Info("health check: refund reconciler healthy")
}

func (s *Service) Stop() {
	logger.Info("shutting down refund reconciler...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, queue *queue.Queue) {
			if err := queue.Stop(timeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("refund reconciler stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the message to the worker pool and blocks until
// the worker reports back, so queue ack/nack reflects the real outcome.
func (s *Service) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}

	s.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to apply refund: %w", msgCtx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	msg := jobRes.msg
	start := time.Now()
	var resultErr error

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	if s.processor == nil {
		logger.Info("no refund processor registered", "worker", workerIndex)
		s.metrics.RecordFailure()
		resultErr = nil // ACK - a missing processor won't appear on retry
	} else {
		if err := s.processor.Process(jobRes.ctx, msg); err != nil {
			s.metrics.RecordFailure()
			logger.Error("failed to apply refund", "worker", workerIndex, "error", err)
			resultErr = err // NACK
		} else {
			s.metrics.RecordSuccess(time.Since(start))
			resultErr = nil // ACK
		}
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("context cancelled while sending result", "worker", workerIndex)
	}
}
