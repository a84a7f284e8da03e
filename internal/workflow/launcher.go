package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"copyengine/internal/config"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/notifications"
	"copyengine/internal/services"
)

// ErrStopped is returned by Go once Stop has been called.
var ErrStopped = errors.New("launcher stopped")

const (
	failureWriteTimeout = 5 * time.Second
	notifyTimeout       = 10 * time.Second
)

// Task runs one job to completion. A task marks its own job succeeded; any
// returned error marks the job failed with the error's code and message.
type Task func(ctx context.Context) error

// Launcher runs job tasks on their own goroutines. Task contexts derive from
// the launcher's root context rather than the request that created the job.
type Launcher struct {
	cfg      *config.Config
	store    jobs.Store
	logger   *slog.Logger
	notifier notifications.Service

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	active  atomic.Int64
}

// LauncherOption customizes a Launcher.
type LauncherOption func(*Launcher)

// WithNotifier publishes job outcomes to svc.
func WithNotifier(svc notifications.Service) LauncherOption {
	return func(l *Launcher) {
		if svc != nil {
			l.notifier = svc
		}
	}
}

// NewLauncher binds a launcher to root. Cancelling root cancels every task.
func NewLauncher(root context.Context, cfg *config.Config, store jobs.Store, logger *slog.Logger, opts ...LauncherOption) *Launcher {
	if root == nil {
		root = context.Background()
	}
	ctx, cancel := context.WithCancel(root)
	l := &Launcher{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "launcher"),
		notifier: notifications.NewService(nil),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Go starts task for jobID in the background and returns immediately.
func (l *Launcher) Go(jobID, stage string, task Task) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.wg.Add(1)
	l.active.Add(1)
	l.mu.Unlock()

	ctx := services.WithJobID(l.ctx, jobID)
	if stage != "" {
		ctx = services.WithStage(ctx, stage)
	}
	go l.run(ctx, jobID, stage, task)
	return nil
}

// Active reports how many tasks are still running.
func (l *Launcher) Active() int {
	return int(l.active.Load())
}

// Stop cancels every task and waits up to grace for them to return.
func (l *Launcher) Stop(grace time.Duration) error {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	if grace <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("%d tasks still running after %s", l.Active(), grace)
	}
}

func (l *Launcher) run(ctx context.Context, jobID, stage string, task Task) {
	defer l.wg.Done()
	defer l.active.Add(-1)

	logger := logging.WithContext(ctx, logging.ForStage(l.logger, l.cfg, stage))
	started := time.Now()
	logger.Debug("task started", logging.String(logging.FieldEventType, "task_started"))

	err := invoke(ctx, task)
	if err == nil {
		logger.Debug("task finished",
			logging.String(logging.FieldEventType, "task_finished"),
			logging.Duration("elapsed", time.Since(started)),
		)
		l.notifySuccess(ctx, logger, jobID, stage)
		return
	}
	l.fail(ctx, logger, jobID, stage, err)
}

func invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Fail(services.ErrInternal, fmt.Sprintf("task panicked: %v", r), fmt.Errorf("%s", debug.Stack()))
		}
	}()
	return task(ctx)
}

func (l *Launcher) fail(ctx context.Context, logger *slog.Logger, jobID, stage string, err error) {
	code := services.Code(err)
	message := services.Message(err)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		code = services.CodeInternal
		message = "job interrupted by shutdown"
	}

	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldErrorCode, string(code)),
		logging.String("error_message", message),
		logging.Alert("job_failure"),
		logging.Error(err),
	)

	// The task context may already be cancelled; the failure still has to land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	job, ok, updateErr := l.store.UpdateJobStatus(writeCtx, jobID, jobs.StatusFailed, jobs.Failure(code, message))
	switch {
	case errors.Is(updateErr, jobs.ErrInvalidTransition):
		logger.Debug("job already terminal, failure not recorded", logging.Error(updateErr))
		return
	case updateErr != nil:
		logger.Error("failed to persist job failure",
			logging.Error(updateErr),
			logging.String(logging.FieldEventType, "job_failure_persist_failed"),
			logging.String(logging.FieldErrorHint, "check job store"),
		)
	case !ok:
		logger.Warn("job vanished before failure was recorded",
			logging.String(logging.FieldEventType, "job_missing"),
			logging.String(logging.FieldErrorHint, "job store was reset"),
			logging.String(logging.FieldImpact, "pollers will see not found"),
		)
	}
	l.publish(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"jobId":   jobID,
		"kind":    string(job.Kind),
		"stage":   stage,
		"code":    string(code),
		"message": message,
	})
}

func (l *Launcher) notifySuccess(ctx context.Context, logger *slog.Logger, jobID, stage string) {
	if !notifications.Enabled(l.notifier) {
		return
	}
	payload := notifications.Payload{"jobId": jobID, "stage": stage}
	if job, ok, err := l.store.GetJob(ctx, jobID); err == nil && ok {
		payload["kind"] = string(job.Kind)
	}
	l.publish(ctx, logger, notifications.EventJobSucceeded, payload)
}

// publish delivers inline; the job is already terminal so pollers are not
// held up, but Stop waits for the delivery to finish or time out.
func (l *Launcher) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := l.notifier.Publish(sendCtx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator alert not delivered"),
		)
	}
}
