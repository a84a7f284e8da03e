package copygen_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"copyengine/internal/config"
	"copyengine/internal/copygen"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/qc"
	"copyengine/internal/services"
	"copyengine/internal/workflow"
)

func newService(t *testing.T, cfg *config.Config) (*copygen.Service, jobs.Store) {
	t.Helper()
	store := jobs.NewMemoryStore()
	launcher := workflow.NewLauncher(context.Background(), cfg, store, logging.NewNop())
	t.Cleanup(func() { _ = launcher.Stop(5 * time.Second) })
	engine := copygen.NewEngine(cfg, nil, logging.NewNop())
	return copygen.NewService(engine, store, launcher, logging.NewNop()), store
}

func waitTerminal(t *testing.T, svc *copygen.Service, jobID string) copygen.JobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, ok, err := svc.GetCopyJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetCopyJob: %v", err)
		}
		if !ok {
			t.Fatalf("job %s not found", jobID)
		}
		if view.Status.IsTerminal() {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", jobID)
	return copygen.JobView{}
}

func TestCreateRewriteJobSucceeds(t *testing.T) {
	cfg := config.Default()
	svc, store := newService(t, &cfg)

	jobID, err := svc.CreateRewriteJob(context.Background(), copygen.RewriteRequest{SourceText: rewriteSource})
	if err != nil {
		t.Fatalf("CreateRewriteJob: %v", err)
	}
	view := waitTerminal(t, svc, jobID)
	if view.Status != jobs.StatusSucceeded || len(view.Versions) != 3 || view.QcReport == nil {
		t.Fatalf("unexpected view: %+v", view)
	}

	job, _, _ := store.GetJob(context.Background(), jobID)
	if job.OutputRef != jobID || job.Kind != jobs.KindRewrite {
		t.Fatalf("unexpected job: %+v", job)
	}
	output, ok, _ := store.GetCopyOutput(context.Background(), jobID)
	if !ok || output.ModelMeta.Provider != jobs.ProviderLocalFallback || output.ModelMeta.Strictness != "strict" {
		t.Fatalf("unexpected output: %+v", output)
	}
}

func TestCreateProductJobRecordsQualityFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Quality.StyleSimilarityThreshold = 1.5
	svc, _ := newService(t, &cfg)

	jobID, err := svc.CreateProductJob(context.Background(), copygen.ProductRequest{
		SourceText: rewriteSource,
		Product: copygen.ProductInfo{
			ProductName:    "轻面霜",
			Category:       "护肤品",
			SellingPoints:  []string{"吸收快", "不粘腻", "温和"},
			TargetAudience: "上班族",
			CTA:            "点击下方链接。",
		},
	})
	if err != nil {
		t.Fatalf("CreateProductJob: %v", err)
	}
	view := waitTerminal(t, svc, jobID)
	if view.Status != jobs.StatusFailed || view.ErrorCode != services.CodeQCFailed || view.ErrorMessage == "" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Versions != nil {
		t.Fatalf("failed job should not expose versions: %+v", view)
	}
	if view.QcReport == nil || view.QcReport.Mode != qc.ModeProductAdapt || len(view.QcReport.VersionChecks) == 0 {
		t.Fatalf("expected product gate report on failed job, got %+v", view.QcReport)
	}
}

func TestCreateRewriteJobExposesFailedGateReport(t *testing.T) {
	cfg := config.Default()
	cfg.Quality.StyleSimilarityThreshold = 1.5
	svc, _ := newService(t, &cfg)

	jobID, err := svc.CreateRewriteJob(context.Background(), copygen.RewriteRequest{SourceText: rewriteSource})
	if err != nil {
		t.Fatalf("CreateRewriteJob: %v", err)
	}
	view := waitTerminal(t, svc, jobID)
	if view.Status != jobs.StatusFailed || view.ErrorCode != services.CodeQCFailed {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.QcReport == nil {
		t.Fatal("expected qc report on failed job")
	}
	report := view.QcReport
	if report.OverallPassed || len(report.VersionChecks) != copygen.DefaultVariantCount {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, check := range report.VersionChecks {
		if check.Passed {
			t.Fatalf("version %d passed a gate it cannot meet: %+v", check.Index, check)
		}
		if check.StyleSimilarity >= 1.5 {
			t.Fatalf("version %d similarity = %v", check.Index, check.StyleSimilarity)
		}
	}
}

func TestQualityReport(t *testing.T) {
	want := qc.Report{Mode: qc.ModeRewrite, VersionChecks: []qc.VersionCheck{{Index: 0}}}
	got, ok := copygen.QualityReport(fmt.Errorf("generate: %w", &copygen.QualityError{Attempts: 3, Report: want}))
	if !ok || got.Mode != want.Mode || len(got.VersionChecks) != 1 {
		t.Fatalf("QualityReport = %+v, %v", got, ok)
	}
	if _, ok := copygen.QualityReport(errors.New("boom")); ok {
		t.Fatal("plain error should carry no report")
	}
}

func TestGetCopyJobMissingOutput(t *testing.T) {
	cfg := config.Default()
	svc, store := newService(t, &cfg)
	ctx := context.Background()

	job, _ := store.CreateJob(ctx, jobs.KindRewrite, nil)
	if _, _, err := store.UpdateJobStatus(ctx, job.ID, jobs.StatusSucceeded, jobs.Output(job.ID)); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	_, ok, err := svc.GetCopyJob(ctx, job.ID)
	if !ok || services.Code(err) != services.CodeInternal {
		t.Fatalf("expected internal error, got ok=%v err=%v", ok, err)
	}
}

func TestGetCopyJobIgnoresTranscriptJobs(t *testing.T) {
	cfg := config.Default()
	svc, store := newService(t, &cfg)
	job, _ := store.CreateJob(context.Background(), jobs.KindTranscript, nil)
	if _, ok, _ := svc.GetCopyJob(context.Background(), job.ID); ok {
		t.Fatal("transcript job should not be visible as a copy job")
	}
	if _, ok, _ := svc.GetCopyJob(context.Background(), "missing"); ok {
		t.Fatal("unknown job should not be found")
	}
}
