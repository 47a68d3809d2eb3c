package queue

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"equitrail/pkg/requestcontext"
)

// FailedFunc is invoked once per job after its attempt budget is exhausted or
// a terminal (non-retryable) error occurs. It must not retry; it exists for
// post-mortem logging and operator alerting.
type FailedFunc func(ctx context.Context, job Job, err error)

// Pool executes queued jobs with a fixed attempt budget and fixed backoff.
type Pool struct {
	queue       Queue
	handlers    map[string]HandlerFunc
	workers     int
	maxAttempts int
	backoff     time.Duration
	failed      FailedFunc
	logger      *slog.Logger
	metrics     *Metrics
}

// Option configures the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxAttempts sets the attempt budget per job.
func WithMaxAttempts(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the fixed delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// WithFailedHook sets the hook called when a job is abandoned.
func WithFailedHook(f FailedFunc) Option {
	return func(p *Pool) { p.failed = f }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// NewPool creates a worker pool over the given queue.
func NewPool(q Queue, logger *slog.Logger, opts ...Option) *Pool {
	p := &Pool{
		queue:       q,
		handlers:    make(map[string]HandlerFunc),
		workers:     4,
		maxAttempts: 3,
		backoff:     5 * time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register binds a handler to a job name. Call before Run.
func (p *Pool) Register(name string, h HandlerFunc) {
	p.handlers[name] = h
}

// Run executes workers until the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error { return p.worker(ctx) })
	}
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("dequeue failed", "error", err)
			continue
		}
		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	handler, ok := p.handlers[job.Name]
	if !ok {
		p.logger.Warn("no handler for job, dropping", "job", job.Name, "job_id", job.ID)
		return
	}

	jobCtx := ctx
	if job.RequestID != "" {
		jobCtx = requestcontext.WithRequestID(jobCtx, job.RequestID)
	}

	err := handler(jobCtx, job)
	if err == nil {
		if p.metrics != nil {
			p.metrics.Processed.WithLabelValues(job.Name).Inc()
		}
		return
	}

	attempt := job.Attempt + 1
	if IsRetryable(err) && attempt < p.maxAttempts {
		p.logger.Warn("job attempt failed, re-enqueueing",
			"job", job.Name,
			"job_id", job.ID,
			"attempt", attempt,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.Retried.WithLabelValues(job.Name).Inc()
		}
		job.Attempt = attempt
		p.requeueAfterBackoff(ctx, job)
		return
	}

	p.logger.Error("job abandoned",
		"job", job.Name,
		"job_id", job.ID,
		"attempts", attempt,
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.Failed.WithLabelValues(job.Name).Inc()
	}
	if p.failed != nil {
		p.failed(jobCtxOrBackground(jobCtx), job, err)
	}
}

// requeueAfterBackoff waits the fixed backoff then re-enqueues. The wait
// happens on the worker goroutine: with a fixed backoff and small budget this
// keeps ordering simple at the cost of briefly idling one worker.
func (p *Pool) requeueAfterBackoff(ctx context.Context, job Job) {
	timer := time.NewTimer(p.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		p.logger.Error("re-enqueue failed, job lost",
			"job", job.Name,
			"job_id", job.ID,
			"error", err,
		)
	}
}

func jobCtxOrBackground(ctx context.Context) context.Context {
	if ctx.Err() != nil {
		return context.Background()
	}
	return ctx
}
