package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/aegis-committee/pkg/logger"
)

// ErrJobRunning is returned by RunJob while the same job is still executing
var ErrJobRunning = errors.New("job already running")

// entry is one registered job and its execution state
type entry struct {
	job     Job
	id      cron.EntryID
	history jobHistory
	running atomic.Bool
}

// Scheduler runs committee jobs on cron schedules in a fixed time zone.
// A job never overlaps itself: a tick that fires while the previous run
// (or a manual RunJob) is in flight is skipped.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron     *cron.Cron
	logger   *logger.Logger
	location *time.Location
	mu       sync.RWMutex
	entries  map[string]*entry

	maxRetries int
	retryDelay time.Duration
}

// Option configures a scheduler
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc instead of the host time zone
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRetry overrides the retry policy (retries after the first attempt)
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// New creates a scheduler. Schedules use six fields (with seconds).
func New(log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     log.WithComponent("scheduler"),
		location:   time.Local,
		entries:    make(map[string]*entry),
		maxRetries: 2,
		retryDelay: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return s
}

// LoadLocation resolves a time zone name, falling back to the host zone
func LoadLocation(name string, log *logger.Logger) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("Unknown time zone, using host zone")
		return time.Local
	}
	return loc
}

// AddJob registers job under its name
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule(), func() {
		if _, err := s.run(context.Background(), e); errors.Is(err, ErrJobRunning) {
			s.logger.WithField("job", name).Warn("Previous run still in progress, tick skipped")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	e.id = id
	s.entries[name] = e

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
		"tz":       s.location.String(),
	}).Info("Job added to scheduler")
	return nil
}

// RemoveJob unregisters a job; its history goes with it
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return nil
}

// Start begins firing schedules in the background
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts new ticks and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a job now and waits for it, retries included
func (s *Scheduler) RunJob(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	e, exists := s.entries[name]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) (JobResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return JobResult{}, fmt.Errorf("%s: %w", e.job.Name(), ErrJobRunning)
	}
	defer e.running.Store(false)

	result := s.attempt(ctx, e.job)

	s.mu.Lock()
	e.history.add(result)
	s.mu.Unlock()

	log := s.logger.WithFields(map[string]interface{}{
		"job":      result.JobName,
		"attempts": result.Attempts,
		"duration": result.Duration,
	})
	if result.Success {
		log.Info("Job completed")
	} else {
		log.WithField("error", result.Error).Error("Job failed")
	}
	return result, nil
}

// attempt runs job up to 1+maxRetries times; Permanent errors and a done
// context end the loop early
func (s *Scheduler) attempt(ctx context.Context, job Job) JobResult {
	result := JobResult{JobName: job.Name(), StartTime: time.Now()}

	var err error
	for result.Attempts = 1; ; result.Attempts++ {
		if err = job.Run(ctx); err == nil {
			result.Success = true
			break
		}
		if IsPermanent(err) || result.Attempts > s.maxRetries {
			break
		}

		s.logger.WithError(err).WithFields(map[string]interface{}{
			"job":     job.Name(),
			"attempt": result.Attempts,
		}).Warn("Job attempt failed, retrying")

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.retryDelay):
			continue
		}
		break
	}

	result.Duration = time.Since(result.StartTime)
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// History returns up to n of a job's newest results, oldest first
func (s *Scheduler) History(name string, n int) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return e.history.latest(n), nil
}

// JobInfo summarizes one registered job
type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	Next     time.Time  `json:"next"` // zero until Start
	Runs     int        `json:"runs"`
	Failures int        `json:"failures"`
	Last     *JobResult `json:"last,omitempty"`
}

// Jobs lists registered jobs sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		runs, failures, last := e.history.stats()
		out = append(out, JobInfo{
			Name:     name,
			Schedule: e.job.Schedule(),
			Next:     s.cron.Entry(e.id).Next,
			Runs:     runs,
			Failures: failures,
			Last:     last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger routes robfig/cron's internal logging (panics, schedule ticks) to zerolog
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
