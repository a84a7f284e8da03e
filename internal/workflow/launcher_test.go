package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"copyengine/internal/config"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/notifications"
	"copyengine/internal/services"
	"copyengine/internal/workflow"
)

func newLauncher(t *testing.T) (*workflow.Launcher, jobs.Store) {
	t.Helper()
	cfg := config.Default()
	store := jobs.NewMemoryStore()
	launcher := workflow.NewLauncher(context.Background(), &cfg, store, logging.NewNop())
	t.Cleanup(func() { _ = launcher.Stop(time.Second) })
	return launcher, store
}

func waitForStatus(t *testing.T, store jobs.Store, id string, want jobs.Status) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _, _ := store.GetJob(context.Background(), id)
	t.Fatalf("job %s did not reach %s, last status %s", id, want, job.Status)
	return jobs.Job{}
}

func TestLauncherRecordsTaskError(t *testing.T) {
	launcher, store := newLauncher(t)
	job, _ := store.CreateJob(context.Background(), jobs.KindTranscript, nil)

	err := launcher.Go(job.ID, "resolve", func(ctx context.Context) error {
		if id, ok := services.JobIDFromContext(ctx); !ok || id != job.ID {
			t.Errorf("expected job id in context, got %q", id)
		}
		return services.Fail(services.ErrResolveFailed, "resolver returned no video url", nil)
	})
	if err != nil {
		t.Fatalf("Go: %v", err)
	}
	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if failed.ErrorCode != services.CodeResolveFailed || failed.ErrorMessage != "resolver returned no video url" {
		t.Fatalf("unexpected failure: %+v", failed)
	}
}

func TestLauncherRecoversPanic(t *testing.T) {
	launcher, store := newLauncher(t)
	job, _ := store.CreateJob(context.Background(), jobs.KindRewrite, nil)

	if err := launcher.Go(job.ID, "generate", func(context.Context) error { panic("boom") }); err != nil {
		t.Fatalf("Go: %v", err)
	}
	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if failed.ErrorCode != services.CodeInternal || failed.ErrorMessage != "task panicked: boom" {
		t.Fatalf("unexpected failure: %+v", failed)
	}
}

func TestLauncherTaskOwnsSuccess(t *testing.T) {
	launcher, store := newLauncher(t)
	job, _ := store.CreateJob(context.Background(), jobs.KindRewrite, nil)

	err := launcher.Go(job.ID, "generate", func(ctx context.Context) error {
		_, _, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusSucceeded, jobs.Output(job.ID))
		return err
	})
	if err != nil {
		t.Fatalf("Go: %v", err)
	}
	done := waitForStatus(t, store, job.ID, jobs.StatusSucceeded)
	if done.OutputRef != job.ID {
		t.Fatalf("unexpected output ref %q", done.OutputRef)
	}
}

func TestLauncherStopCancelsTasks(t *testing.T) {
	cfg := config.Default()
	store := jobs.NewMemoryStore()
	launcher := workflow.NewLauncher(context.Background(), &cfg, store, logging.NewNop())
	job, _ := store.CreateJob(context.Background(), jobs.KindTranscript, nil)

	started := make(chan struct{})
	if err := launcher.Go(job.ID, "asr", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	<-started
	if err := launcher.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if launcher.Active() != 0 {
		t.Fatalf("expected no active tasks, got %d", launcher.Active())
	}
	got, _, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != jobs.StatusFailed || got.ErrorMessage != "job interrupted by shutdown" {
		t.Fatalf("unexpected job after stop: %+v", got)
	}
	if err := launcher.Go(job.ID, "asr", func(context.Context) error { return nil }); !errors.Is(err, workflow.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
	done   chan struct{}
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.last = payload
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestLauncherPublishesFailure(t *testing.T) {
	cfg := config.Default()
	store := jobs.NewMemoryStore()
	notifier := &recordingNotifier{done: make(chan struct{}, 1)}
	launcher := workflow.NewLauncher(context.Background(), &cfg, store, logging.NewNop(), workflow.WithNotifier(notifier))
	t.Cleanup(func() { _ = launcher.Stop(time.Second) })
	job, _ := store.CreateJob(context.Background(), jobs.KindProductAdapt, nil)

	if err := launcher.Go(job.ID, "generate", func(context.Context) error {
		return services.Fail(services.ErrQCFailed, "quality gate failed", nil)
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventJobFailed {
		t.Fatalf("unexpected events %v", notifier.events)
	}
	if notifier.last["jobId"] != job.ID || notifier.last["kind"] != string(jobs.KindProductAdapt) || notifier.last["code"] != string(services.CodeQCFailed) {
		t.Fatalf("unexpected payload %v", notifier.last)
	}
}
