// Package jobs runs asynchronous generation work. Submit records a PENDING
// Job row and returns a Handle; a pool of workers claims rows and runs the
// handler registered for the job's type.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/store"
)

// Event names accepted by Submit.
const (
	EventQuestionsGenerate = "module/questions.generate"
	EventChapterGenerate   = "module/chapter.generate"
	EventAudioTranscribe   = "audio/transcribe"
)

// ErrUnknownEvent is returned by Submit for an event with no handler.
var ErrUnknownEvent = errors.New("unknown job event")

// Task is one unit of work to submit.
type Task struct {
	Event     string
	ProjectID string
	ModuleID  string
	Payload   any
}

// ProgressFunc reports completion percentage from inside a handler.
type ProgressFunc func(pct int)

// HandlerFunc performs a job. The returned value is stored as the job result.
type HandlerFunc func(ctx context.Context, job *store.Job, progress ProgressFunc) (any, error)

// Handle refers to a submitted job.
type Handle struct {
	JobID string
	store *store.Store
}

// Status returns the current Job row.
func (h Handle) Status(ctx context.Context) (*store.Job, error) {
	return h.store.GetJob(ctx, h.JobID)
}

// Wait polls until the job is COMPLETED or FAILED or ctx is done.
func (h Handle) Wait(ctx context.Context, interval time.Duration) (*store.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := h.Status(ctx)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Options tune the worker pool.
type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	// Backoff returns the pause before retry n (1-based). Nil uses a
	// linear two-second step.
	Backoff func(n int) time.Duration
}

// Dispatcher submits and runs jobs.
type Dispatcher struct {
	store    *store.Store
	logger   *log.Logger
	opts     Options
	byEvent  map[string]store.JobType
	handlers map[store.JobType]HandlerFunc
	wake     chan struct{}
}

// NewDispatcher creates a Dispatcher with no handlers registered.
func NewDispatcher(st *store.Store, logger *log.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = func(n int) time.Duration { return time.Duration(n) * 2 * time.Second }
	}
	return &Dispatcher{
		store:    st,
		logger:   logger,
		opts:     opts,
		byEvent:  make(map[string]store.JobType),
		handlers: make(map[store.JobType]HandlerFunc),
		wake:     make(chan struct{}, 1),
	}
}

// Register binds an event name to a job type and its handler. Register
// before calling Run.
func (d *Dispatcher) Register(event string, jobType store.JobType, h HandlerFunc) {
	d.byEvent[event] = jobType
	d.handlers[jobType] = h
}

// Submit records a PENDING job for the task and wakes a worker.
func (d *Dispatcher) Submit(ctx context.Context, t Task) (Handle, error) {
	jobType, ok := d.byEvent[t.Event]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnknownEvent, t.Event)
	}

	var moduleID *string
	if t.ModuleID != "" {
		id := t.ModuleID
		moduleID = &id
	}
	job, err := store.NewJob(t.ProjectID, moduleID, jobType, t.Payload)
	if err != nil {
		return Handle{}, err
	}
	if err := d.store.CreateJob(ctx, job); err != nil {
		return Handle{}, err
	}

	d.logger.Emit(log.LogEvent{
		Event:     log.EventJobQueued,
		ProjectID: t.ProjectID,
		ModuleID:  t.ModuleID,
		JobID:     job.ID,
		JobType:   string(jobType),
	})

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return Handle{JobID: job.ID, store: d.store}, nil
}

// Handle returns a Handle for an existing job ID.
func (d *Dispatcher) Handle(jobID string) Handle {
	return Handle{JobID: jobID, store: d.store}
}

// Run fails jobs left RUNNING by a previous process, then runs workers until
// ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	n, err := d.store.FailInterruptedJobs(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		d.logger.Emit(log.LogEvent{
			Event:  log.EventWarning,
			Reason: fmt.Sprintf("marked %d interrupted job(s) as failed", n),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			d.worker(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		for {
			ran, err := d.RunOnce(ctx)
			if err != nil {
				d.logger.Emit(log.LogEvent{Event: log.EventWarning, Reason: "claim job", Error: err.Error()})
			}
			if !ran || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-ticker.C:
		}
	}
}

// RunOnce claims and runs one pending job. It reports whether a job ran.
func (d *Dispatcher) RunOnce(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	job, err := d.store.ClaimNextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	d.execute(ctx, job)
	return true, nil
}

func (d *Dispatcher) execute(ctx context.Context, job *store.Job) {
	ev := log.LogEvent{
		ProjectID: job.ProjectID,
		JobID:     job.ID,
		JobType:   string(job.Type),
	}
	if job.ModuleID != nil {
		ev.ModuleID = *job.ModuleID
	}
	began := time.Now()

	// Bookkeeping writes must land even when ctx is cancelled mid-job.
	bg := context.WithoutCancel(ctx)

	h, ok := d.handlers[job.Type]
	if !ok {
		d.fail(bg, job, ev, fmt.Errorf("no handler for job type %s", job.Type))
		return
	}

	progress := func(pct int) {
		if err := d.store.UpdateJobProgress(bg, job.ID, pct); err != nil {
			d.logger.Emit(log.LogEvent{Event: log.EventWarning, JobID: job.ID, Reason: "update progress", Error: err.Error()})
		}
	}

	for attempt := job.Attempts; ; attempt++ {
		ev.Attempt = attempt
		start := ev
		start.Event = log.EventJobStarted
		d.logger.Emit(start)

		result, err := h(ctx, job, progress)
		if err == nil {
			if err := d.store.CompleteJob(bg, job.ID, result); err != nil {
				d.fail(bg, job, ev, err)
				return
			}
			done := ev
			done.Event = log.EventJobCompleted
			done.DurationMs = time.Since(began).Milliseconds()
			d.logger.Emit(done)
			return
		}

		if ctx.Err() != nil || !ai.IsRetryable(err) || attempt >= d.opts.MaxAttempts {
			d.fail(bg, job, ev, err)
			return
		}

		if err := d.store.RecordJobAttempt(bg, job.ID); err != nil {
			d.fail(bg, job, ev, err)
			return
		}
		retry := ev
		retry.Event = log.EventWarning
		retry.Reason = "retrying job"
		retry.Error = err.Error()
		d.logger.Emit(retry)

		select {
		case <-ctx.Done():
			d.fail(bg, job, ev, ctx.Err())
			return
		case <-time.After(d.opts.Backoff(attempt)):
		}
	}
}

func (d *Dispatcher) fail(ctx context.Context, job *store.Job, ev log.LogEvent, cause error) {
	category := ErrorCategory(cause)
	if err := d.store.FailJob(ctx, job.ID, cause.Error(), category); err != nil {
		d.logger.Emit(log.LogEvent{Event: log.EventWarning, JobID: job.ID, Reason: "mark job failed", Error: err.Error()})
	}
	ev.Event = log.EventJobFailed
	ev.Error = cause.Error()
	ev.Reason = category
	d.logger.Emit(ev)
}

// ErrorCategory names the failure class stored on a FAILED job.
func ErrorCategory(err error) string {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		return string(aiErr.Category)
	}
	if errors.Is(err, context.Canceled) {
		return "interrupted"
	}
	if ai.CategoryOf(err) == ai.CategoryTimeout {
		return string(ai.CategoryTimeout)
	}
	return "internal"
}
