package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a named periodic task. The context passed to Run is not cancelled
// by StopAll: a run that has started is allowed to complete.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type runningJob struct {
	job        Job
	ticker     *time.Ticker
	inProgress atomic.Bool
}

// Scheduler runs fixed-interval jobs on independent tickers. A tick that
// fires while the previous run of the same job is still in progress is
// skipped, never queued, so a slow run cannot pile up executions behind it.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []*runningJob
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a job scheduler
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &runningJob{job: job})
}

// Start launches one ticker goroutine per registered job. The first run
// happens after one full interval, not immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, rj := range s.jobs {
		rj.ticker = time.NewTicker(rj.job.Interval)
		s.wg.Add(1)
		go s.runLoop(ctx, rj)
		s.logger.Info("Scheduled job started",
			zap.String("job", rj.job.Name),
			zap.Duration("interval", rj.job.Interval),
		)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, rj *runningJob) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			rj.ticker.Stop()
			return
		case <-rj.ticker.C:
			s.fire(rj)
		}
	}
}

// fire starts one execution unless the previous one is still running.
func (s *Scheduler) fire(rj *runningJob) {
	if !rj.inProgress.CompareAndSwap(false, true) {
		s.logger.Warn("Job still running, skipping this tick",
			zap.String("job", rj.job.Name),
		)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer rj.inProgress.Store(false)

		start := time.Now()
		// a started run always gets a live context; StopAll only prevents
		// future firings and waits for this one to return
		rj.job.Run(context.Background())
		s.logger.Debug("Job finished",
			zap.String("job", rj.job.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
}

// StopAll cancels future firings only, then waits for in-flight runs to
// complete. Runs are never interrupted mid-batch.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	if !s.started || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("All scheduled jobs stopped")
}
