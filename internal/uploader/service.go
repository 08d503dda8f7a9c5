package uploader

import (
	"context"
	"errors"
	"sync"
	"time"

	"influxrelay/internal/influx"
	"influxrelay/internal/logger"
	"influxrelay/internal/metrics"
	"influxrelay/internal/queue"
	"influxrelay/internal/record"
)

// systemMetricsInterval is how often goroutine and memory gauges refresh.
const systemMetricsInterval = 15 * time.Second

// Service accepts records from the sources and hands them to a single
// upload worker through an unbounded queue.
type Service struct {
	binding Binding
	queue   *queue.Queue
	worker  *Worker
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// NewService creates a service delivering records of the given binding.
func NewService(cfg WorkerConfig, binding Binding, client influx.Client, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Service {
	q := queue.New()
	return &Service{
		binding: binding,
		queue:   q,
		worker:  NewWorker(cfg, q, client, m, log, opts...),
		metrics: m,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start launches the worker. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		s.runErr = s.worker.Run(ctx)
	}()
	go s.collectSystemMetrics(ctx)

	s.logger.Info("uploader started", "binding", s.binding)
}

// Submit enqueues a record for upload. It never blocks. Records whose
// origin does not match the binding are ignored and false is returned.
func (s *Service) Submit(rec *record.Record) bool {
	if rec == nil {
		return false
	}
	if !s.binding.Accepts(rec.Origin) {
		s.logger.Debug("ignoring record outside binding",
			"origin", rec.Origin,
			"binding", s.binding)
		s.metrics.RecordDropped(metrics.DropBinding, 1)
		return false
	}

	s.queue.Push(rec)
	s.metrics.RecordReceived(string(rec.Origin))
	s.metrics.SetQueueDepth(s.queue.Len())
	return true
}

// QueueLen returns the number of records waiting for the worker.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

// Stop asks the worker to finish the records already queued and exit. If
// ctx ends first the worker is cancelled and ctx's error returned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.queue.PushStop()
	select {
	case <-s.done:
		s.cancel()
	case <-ctx.Done():
		s.cancel()
		<-s.done
		s.logger.Warn("uploader stopped before the queue drained", "pending", s.queue.Len())
		return ctx.Err()
	}

	if s.runErr != nil && !errors.Is(s.runErr, context.Canceled) {
		return s.runErr
	}
	s.logger.Info("uploader stopped")
	return nil
}

// collectSystemMetrics periodically updates system metrics
func (s *Service) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	s.metrics.UpdateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateSystemMetrics()
		}
	}
}
