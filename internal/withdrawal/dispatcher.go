package withdrawal

import (
	"context"
	"log/slog"
	"sync"
)

// DisbursementJob carries one queued withdrawal to a worker.
type DisbursementJob struct {
	WithdrawalID int64
	Reference    string
}

type Worker struct {
	ID         int
	WorkerPool chan chan DisbursementJob
	JobChannel chan DisbursementJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan DisbursementJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan DisbursementJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, DisbursementJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker picked up disbursement", "worker_id", w.ID, "reference", job.Reference)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Dispatcher fans queued withdrawals out to a fixed worker pool so slow
// provider payouts never block the request path.
type Dispatcher struct {
	logger *slog.Logger

	jobQueue   chan DisbursementJob
	workerPool chan chan DisbursementJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type DispatcherConfig struct {
	MaxWorkers   int
	JobQueueSize int
}

func NewDispatcher(config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	return &Dispatcher{
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan DisbursementJob, jobQueueSize),
		workerPool: make(chan chan DisbursementJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers. processFunc runs on a worker goroutine per
// job; it must be safe to call concurrently.
func (d *Dispatcher) Start(processFunc func(context.Context, DisbursementJob)) {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, processFunc)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("disbursement worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.logger.Info("dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Enqueue hands a withdrawal to the pool. It reports false when the queue
// is full so callers can surface backpressure instead of blocking.
func (d *Dispatcher) Enqueue(job DisbursementJob) bool {
	select {
	case d.jobQueue <- job:
		d.logger.Info("disbursement queued",
			"reference", job.Reference,
			"queue_length", len(d.jobQueue))
		return true
	default:
		d.logger.Warn("disbursement queue full",
			"reference", job.Reference,
			"queue_capacity", cap(d.jobQueue))
		return false
	}
}

func (d *Dispatcher) Shutdown() {
	d.logger.Info("shutting down disbursement dispatcher")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("disbursement dispatcher shutdown complete")
}
