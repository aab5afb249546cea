package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("task queue is full")
	// ErrPoolClosed is returned by Submit after Shutdown
	ErrPoolClosed = errors.New("task pool is shut down")
)

// saveTimeout bounds the result write after a job finishes
const saveTimeout = 10 * time.Second

// Job performs one background analysis. The returned payload is stored as
// JSON under the job's task id.
type Job func(ctx context.Context) (domain.TaskStatus, interface{})

type queued struct {
	id  string
	job Job
}

// Stats is a snapshot of pool activity
type Stats struct {
	Workers   int   `json:"workers"`
	Capacity  int   `json:"queue_capacity"`
	Queued    int   `json:"queued"`
	Running   int64 `json:"running"`
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool runs jobs on a fixed number of workers fed by a bounded queue
type Pool struct {
	queue       chan queued
	store       ResultStore
	workers     int
	taskTimeout time.Duration
	log         *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	running   atomic.Int64
	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool starts config.Workers workers writing results to store
func NewPool(config domain.WorkerConfig, store ResultStore, logger *logrus.Logger) *Pool {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	capacity := config.QueueSize
	if capacity < 0 {
		capacity = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:       make(chan queued, capacity),
		store:       store,
		workers:     workers,
		taskTimeout: config.TaskTimeout,
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	logger.WithFields(logrus.Fields{
		"workers":        workers,
		"queue_capacity": capacity,
		"store":          store.Backend(),
	}).Info("Task pool started")

	return p
}

// Submit enqueues job and returns its task id without waiting
func (p *Pool) Submit(job Job) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return "", ErrPoolClosed
	}

	id := uuid.NewString()
	select {
	case p.queue <- queued{id: id, job: job}:
		p.submitted.Add(1)
		return id, nil
	default:
		p.rejected.Add(1)
		return "", ErrQueueFull
	}
}

// Result returns the stored outcome of taskID
func (p *Pool) Result(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	return p.store.Get(ctx, taskID)
}

// Stats returns current counters
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Capacity:  cap(p.queue),
		Queued:    len(p.queue),
		Running:   p.running.Load(),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs.
// When ctx ends first, in-flight jobs are cancelled and ctx's error is
// returned once the workers exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("Task pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.log.WithField("stats", p.Stats()).Warn("Task pool shut down before drain completed")
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for q := range p.queue {
		p.run(q)
	}
}

func (p *Pool) run(q queued) {
	p.running.Add(1)
	defer p.running.Add(-1)

	started := time.Now()
	status, payload := p.execute(q)

	data, err := json.Marshal(payload)
	if err != nil {
		status = domain.TaskError
		data, _ = json.Marshal(map[string]string{
			"status":        string(domain.TaskError),
			"error_message": fmt.Sprintf("encoding result: %v", err),
		})
	}

	if status == domain.TaskError {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), saveTimeout)
	defer cancel()

	result := &domain.TaskResult{TaskID: q.id, Status: status, Payload: data}
	if err := p.store.Save(ctx, result); err != nil {
		p.log.WithError(err).WithField("task_id", q.id).Error("Failed to store task result")
		return
	}

	p.log.WithFields(logrus.Fields{
		"task_id":     q.id,
		"status":      status,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Task finished")
}

func (p *Pool) execute(q queued) (status domain.TaskStatus, payload interface{}) {
	ctx := p.ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"task_id": q.id,
				"panic":   r,
			}).Error("Task panicked")
			status = domain.TaskError
			payload = map[string]string{
				"status":        string(domain.TaskError),
				"error_message": fmt.Sprintf("task panicked: %v", r),
			}
		}
	}()

	return q.job(ctx)
}
