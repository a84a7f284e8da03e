package copygen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/qc"
	"copyengine/internal/services"
	"copyengine/internal/workflow"
)

// Launcher starts background job tasks. *workflow.Launcher satisfies it.
type Launcher interface {
	Go(jobID, stage string, task workflow.Task) error
}

// Service runs copy generation as asynchronous jobs.
type Service struct {
	engine   *Engine
	store    jobs.Store
	launcher Launcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the engine to the job store.
func NewService(engine *Engine, store jobs.Store, launcher Launcher, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		store:    store,
		launcher: launcher,
		logger:   logging.NewComponentLogger(logger, "copy-jobs"),
		now:      time.Now,
	}
}

// JobView is what a poller sees for a copy job.
type JobView struct {
	JobID        string             `json:"jobId"`
	Status       jobs.Status        `json:"status"`
	ErrorCode    services.ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	Versions     []string           `json:"versions,omitempty"`
	QcReport     *qc.Report         `json:"qcReport,omitempty"`
}

// CreateRewriteJob records a rewrite job, moves it to generating and starts it.
func (s *Service) CreateRewriteJob(ctx context.Context, req RewriteRequest) (string, error) {
	req.VariantCount = variantCount(req.VariantCount)
	req.Strictness = strictness(req.Strictness)
	job, err := s.startJob(ctx, jobs.KindRewrite, qc.ModeRewrite)
	if err != nil {
		return "", err
	}
	task := func(ctx context.Context) error {
		result, err := s.engine.Rewrite(ctx, req)
		if err != nil {
			return s.recordFailure(ctx, job.ID, req.SourceText, err)
		}
		return s.complete(ctx, job.ID, req.SourceText, result, jobs.ModelMeta{
			Mode:       qc.ModeRewrite,
			Strictness: req.Strictness,
			Provider:   result.Provider,
		})
	}
	return job.ID, s.launch(ctx, job.ID, task)
}

// CreateProductJob records a product-adapt job, snapshots the product
// profile, and starts generation.
func (s *Service) CreateProductJob(ctx context.Context, req ProductRequest) (string, error) {
	req.VariantCount = variantCount(req.VariantCount)
	req.Strictness = strictness(req.Strictness)
	job, err := s.startJob(ctx, jobs.KindProductAdapt, qc.ModeProductAdapt)
	if err != nil {
		return "", err
	}
	task := func(ctx context.Context) error {
		profile, err := s.store.SaveProductProfile(ctx, jobs.ProductProfile{
			ProductName:    req.Product.ProductName,
			Category:       req.Product.Category,
			SellingPoints:  req.Product.SellingPoints,
			TargetAudience: req.Product.TargetAudience,
			CTA:            req.Product.CTA,
			ForbiddenWords: req.Product.ForbiddenWords,
		})
		if err != nil {
			return services.Wrap(services.ErrInternal, "generate", "save product profile", "", err)
		}
		result, err := s.engine.Adapt(ctx, req)
		if err != nil {
			return s.recordFailure(ctx, job.ID, req.SourceText, err)
		}
		return s.complete(ctx, job.ID, req.SourceText, result, jobs.ModelMeta{
			Mode:       qc.ModeProductAdapt,
			Strictness: req.Strictness,
			Provider:   result.Provider,
			ProfileID:  profile.ProfileID,
		})
	}
	return job.ID, s.launch(ctx, job.ID, task)
}

func (s *Service) startJob(ctx context.Context, kind jobs.Kind, mode qc.Mode) (jobs.Job, error) {
	job, err := s.store.CreateJob(ctx, kind, map[string]any{"mode": string(mode)})
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrInternal, "generate", "create job", "", err)
	}
	if _, _, err := s.store.UpdateJobStatus(ctx, job.ID, jobs.StatusGenerating, jobs.Patch{}); err != nil {
		return jobs.Job{}, services.Wrap(services.ErrInternal, "generate", "mark generating", "", err)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), s.logger).Info("copy job queued",
		logging.String(logging.FieldEventType, "copy_job_queued"),
		logging.String(logging.FieldJobKind, string(kind)),
	)
	return job, nil
}

func (s *Service) launch(ctx context.Context, jobID string, task workflow.Task) error {
	if err := s.launcher.Go(jobID, "generate", task); err != nil {
		message := fmt.Sprintf("could not start generation: %v", err)
		_, _, _ = s.store.UpdateJobStatus(ctx, jobID, jobs.StatusFailed, jobs.Failure(services.CodeInternal, message))
		return services.Wrap(services.ErrInternal, "generate", "launch", "", err)
	}
	return nil
}

func (s *Service) complete(ctx context.Context, jobID, source string, result Result, meta jobs.ModelMeta) error {
	err := s.store.SaveCopyOutput(ctx, jobs.CopyOutput{
		JobID:      jobID,
		SourceText: source,
		Versions:   result.Versions,
		QcReport:   result.QcReport,
		ModelMeta:  meta,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return services.Wrap(services.ErrInternal, "generate", "save output", "", err)
	}
	if _, _, err := s.store.UpdateJobStatus(ctx, jobID, jobs.StatusSucceeded, jobs.Output(jobID)); err != nil {
		return services.Wrap(services.ErrInternal, "generate", "mark succeeded", "", err)
	}
	return nil
}

// recordFailure keeps the last gate report of a quality failure so pollers
// can see which checks each version missed. err is returned unchanged.
func (s *Service) recordFailure(ctx context.Context, jobID, source string, err error) error {
	report, ok := QualityReport(err)
	if !ok {
		return err
	}
	saveErr := s.store.SaveCopyOutput(ctx, jobs.CopyOutput{
		JobID:      jobID,
		SourceText: source,
		QcReport:   report,
		ModelMeta:  jobs.ModelMeta{Mode: report.Mode, Provider: s.engine.Provider()},
		CreatedAt:  s.now().UTC(),
	})
	if saveErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "quality report not saved", "qc_report_save_failed",
			logging.Error(saveErr),
			logging.String(logging.FieldImpact, "failed job will not expose version checks"),
		)
	}
	return err
}

// GetCopyJob returns the job's progress, or its versions once it succeeded.
// A job that failed the quality gate carries the last gate report.
// A succeeded job without a stored output is reported as an internal error.
func (s *Service) GetCopyJob(ctx context.Context, jobID string) (JobView, bool, error) {
	job, ok, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return JobView{}, false, err
	}
	if !ok || !job.Kind.IsCopy() {
		return JobView{}, false, nil
	}
	if job.Status != jobs.StatusSucceeded {
		view := JobView{
			JobID:        job.ID,
			Status:       job.Status,
			ErrorCode:    job.ErrorCode,
			ErrorMessage: job.ErrorMessage,
		}
		if job.Status == jobs.StatusFailed && job.ErrorCode == services.CodeQCFailed {
			output, found, err := s.store.GetCopyOutput(ctx, job.ID)
			if err != nil {
				return JobView{}, true, err
			}
			if found {
				report := output.QcReport
				view.QcReport = &report
			}
		}
		return view, true, nil
	}
	output, ok, err := s.store.GetCopyOutput(ctx, job.ID)
	if err != nil {
		return JobView{}, true, err
	}
	if !ok {
		return JobView{JobID: job.ID, Status: job.Status}, true,
			services.Fail(services.ErrInternal, "copy output missing", nil)
	}
	report := output.QcReport
	return JobView{
		JobID:    job.ID,
		Status:   job.Status,
		Versions: output.Versions,
		QcReport: &report,
	}, true, nil
}
