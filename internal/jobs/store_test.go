package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"copyengine/internal/config"
	"copyengine/internal/jobs"
	"copyengine/internal/qc"
	"copyengine/internal/services"
)

func eachStore(t *testing.T, fn func(t *testing.T, store jobs.Store)) {
	t.Helper()
	factories := map[string]func(t *testing.T) jobs.Store{
		"memory": func(t *testing.T) jobs.Store { return jobs.NewMemoryStore() },
		"sqlite": func(t *testing.T) jobs.Store {
			store, err := jobs.OpenSQLite(context.Background())
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			return store
		},
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })
			fn(t, store)
		})
	}
}

func TestCreateAndGetJob(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		job, err := store.CreateJob(ctx, jobs.KindTranscript, map[string]any{"shareText": "look"})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if job.ID == "" || job.Status != jobs.StatusQueued {
			t.Fatalf("unexpected job: %+v", job)
		}
		got, ok, err := store.GetJob(ctx, job.ID)
		if err != nil || !ok {
			t.Fatalf("GetJob ok=%v err=%v", ok, err)
		}
		if got.Kind != jobs.KindTranscript || got.Meta["shareText"] != "look" {
			t.Fatalf("unexpected stored job: %+v", got)
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Fatalf("expected timestamps: %+v", got)
		}
	})
}

func TestCreateJobRejectsUnknownKind(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		if _, err := store.CreateJob(context.Background(), jobs.Kind("bogus"), nil); !errors.Is(err, jobs.ErrUnknownKind) {
			t.Fatalf("expected ErrUnknownKind, got %v", err)
		}
	})
}

func TestGetJobUnknown(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		_, ok, err := store.GetJob(context.Background(), "missing")
		if err != nil || ok {
			t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
		}
		_, ok, err = store.UpdateJobStatus(context.Background(), "missing", jobs.StatusFailed, jobs.Patch{})
		if err != nil || ok {
			t.Fatalf("expected update of unknown job to report ok=false, got ok=%v err=%v", ok, err)
		}
	})
}

func TestUpdateJobStatusMergesPatch(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		job, err := store.CreateJob(ctx, jobs.KindTranscript, nil)
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if _, _, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusResolving, jobs.Patch{}); err != nil {
			t.Fatalf("resolving: %v", err)
		}
		updated, ok, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusSucceeded, jobs.Transcript("hello world"))
		if err != nil || !ok {
			t.Fatalf("succeeded ok=%v err=%v", ok, err)
		}
		if updated.TranscriptText != "hello world" || updated.Status != jobs.StatusSucceeded {
			t.Fatalf("unexpected job: %+v", updated)
		}
		if updated.UpdatedAt.Before(job.UpdatedAt) {
			t.Fatalf("updatedAt went backwards: %v < %v", updated.UpdatedAt, job.UpdatedAt)
		}
		got, _, _ := store.GetJob(ctx, job.ID)
		if got.TranscriptText != "hello world" {
			t.Fatalf("patch not persisted: %+v", got)
		}
	})
}

func TestUpdateJobStatusRejectsRegression(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		job, _ := store.CreateJob(ctx, jobs.KindRewrite, nil)
		if _, _, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusFailed, jobs.Failure(services.CodeQCFailed, "qc")); err != nil {
			t.Fatalf("fail: %v", err)
		}
		_, ok, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusGenerating, jobs.Patch{})
		if !ok || !errors.Is(err, jobs.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got ok=%v err=%v", ok, err)
		}
		got, _, _ := store.GetJob(ctx, job.ID)
		if got.Status != jobs.StatusFailed || got.ErrorCode != services.CodeQCFailed || got.ErrorMessage != "qc" {
			t.Fatalf("failed job changed: %+v", got)
		}
	})
}

func TestCopyOutputWriteOnce(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		output := jobs.CopyOutput{
			JobID:      "job-1",
			SourceText: "原文",
			Versions:   []string{"a", "b", "c"},
			QcReport:   qc.Report{Mode: qc.ModeRewrite, SourceLength: 2, OverallPassed: true},
			ModelMeta:  jobs.ModelMeta{Mode: qc.ModeRewrite, Strictness: "strict", Provider: jobs.ProviderLocalFallback},
		}
		if err := store.SaveCopyOutput(ctx, output); err != nil {
			t.Fatalf("SaveCopyOutput: %v", err)
		}
		if err := store.SaveCopyOutput(ctx, output); !errors.Is(err, jobs.ErrOutputExists) {
			t.Fatalf("expected ErrOutputExists, got %v", err)
		}
		got, ok, err := store.GetCopyOutput(ctx, "job-1")
		if err != nil || !ok {
			t.Fatalf("GetCopyOutput ok=%v err=%v", ok, err)
		}
		if len(got.Versions) != 3 || got.Versions[2] != "c" || !got.QcReport.OverallPassed {
			t.Fatalf("unexpected output: %+v", got)
		}
		if got.ModelMeta.Provider != jobs.ProviderLocalFallback || got.CreatedAt.IsZero() {
			t.Fatalf("unexpected meta: %+v", got)
		}
		got.Versions[0] = "mutated"
		again, _, _ := store.GetCopyOutput(ctx, "job-1")
		if again.Versions[0] != "a" {
			t.Fatal("stored output was mutated through returned copy")
		}
	})
}

func TestRequestMappingIsWriteOnce(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		id, created, err := store.SetRequestMapping(ctx, "req-1", "job-a")
		if err != nil || !created || id != "job-a" {
			t.Fatalf("first mapping id=%q created=%v err=%v", id, created, err)
		}
		id, created, err = store.SetRequestMapping(ctx, "req-1", "job-b")
		if err != nil || created || id != "job-a" {
			t.Fatalf("second mapping id=%q created=%v err=%v", id, created, err)
		}
		got, ok, err := store.GetJobByRequestID(ctx, "req-1")
		if err != nil || !ok || got != "job-a" {
			t.Fatalf("GetJobByRequestID got=%q ok=%v err=%v", got, ok, err)
		}
		if _, ok, _ := store.GetJobByRequestID(ctx, "req-2"); ok {
			t.Fatal("expected unknown request id")
		}
	})
}

func TestRequestMappingConcurrentWinner(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			winners = map[string]struct{}{}
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, ok, err := store.SetRequestMapping(ctx, "shared", string(rune('a'+i)))
				if err != nil {
					t.Errorf("SetRequestMapping: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if ok {
					created++
				}
				winners[id] = struct{}{}
			}()
		}
		wg.Wait()
		if created != 1 || len(winners) != 1 {
			t.Fatalf("expected exactly one winner, created=%d winners=%v", created, winners)
		}
	})
}

func TestProductProfileRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store jobs.Store) {
		ctx := context.Background()
		saved, err := store.SaveProductProfile(ctx, jobs.ProductProfile{
			ProductName:    "净水器",
			Category:       "家电",
			SellingPoints:  []string{"安装简单", "滤芯耐用", "出水快"},
			TargetAudience: "租房党",
			CTA:            "点击下方链接",
		})
		if err != nil {
			t.Fatalf("SaveProductProfile: %v", err)
		}
		if saved.ProfileID == "" {
			t.Fatal("expected generated profile id")
		}
		got, ok, err := store.GetProductProfile(ctx, saved.ProfileID)
		if err != nil || !ok {
			t.Fatalf("GetProductProfile ok=%v err=%v", ok, err)
		}
		if got.ProductName != "净水器" || len(got.SellingPoints) != 3 || len(got.ForbiddenWords) != 0 {
			t.Fatalf("unexpected profile: %+v", got)
		}
	})
}

func TestOpenSelectsDriver(t *testing.T) {
	cfg := config.Default()
	store, err := jobs.Open(&cfg)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := store.(*jobs.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Store.Driver = "sqlite"
	store, err = jobs.Open(&cfg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*jobs.SQLStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	cfg.Store.Driver = "postgres"
	if _, err := jobs.Open(&cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
