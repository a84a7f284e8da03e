package copygen

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"copyengine/internal/config"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/qc"
	"copyengine/internal/rewriter"
	"copyengine/internal/services"
	"copyengine/internal/services/llm"
)

const (
	rewriteSeedStep = 17
	productSeedStep = 19
	productSafeSeed = 97
)

// Engine generates and scores copy variants.
type Engine struct {
	drafter       Drafter
	thresholds    qc.Thresholds
	maxRegenerate int
	logger        *slog.Logger
}

// NewEngine builds an engine. A nil drafter means heuristic drafts only.
func NewEngine(cfg *config.Config, drafter Drafter, logger *slog.Logger) *Engine {
	e := &Engine{
		drafter:       drafter,
		thresholds:    qc.DefaultThresholds(),
		maxRegenerate: 2,
		logger:        logging.NewComponentLogger(logger, "copygen"),
	}
	if cfg != nil {
		e.thresholds = Thresholds(cfg)
		e.maxRegenerate = cfg.Quality.MaxRegenerate
	}
	return e
}

// Thresholds maps the configured quality section onto gate thresholds.
func Thresholds(cfg *config.Config) qc.Thresholds {
	if cfg == nil {
		return qc.DefaultThresholds()
	}
	return qc.Thresholds{
		MinLengthRatio:             cfg.Quality.LengthMinRatio,
		MaxLengthRatio:             cfg.Quality.LengthMaxRatio,
		MinStyleSimilarity:         cfg.Quality.StyleSimilarityThreshold,
		MinStructureMatchRate:      cfg.Quality.StructureMatchThreshold,
		MinSellingPointsPerVariant: cfg.Quality.MinSellingPointsPerDraft,
	}
}

// NewModelClient builds the chat model client described by cfg.
func NewModelClient(cfg *config.Config) *llm.Client {
	settings := cfg.GetLLM()
	return llm.NewClient(llm.Config{
		APIKey:      settings.APIKey,
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		Temperature: settings.Temperature,
		Timeout:     settings.Timeout,
	}, llm.WithRetryMaxAttempts(settings.RetryAttempts))
}

// Provider names who drafts for this engine.
func (e *Engine) Provider() jobs.Provider {
	if e.modelEnabled() {
		return jobs.ProviderVolcengine
	}
	return jobs.ProviderLocalFallback
}

func (e *Engine) modelEnabled() bool {
	return e.drafter != nil && e.drafter.Configured()
}

// Rewrite produces close rewrites of the source.
func (e *Engine) Rewrite(ctx context.Context, req RewriteRequest) (Result, error) {
	count := variantCount(req.VariantCount)
	source := rewriter.StripTrailingPlatformTag(strings.TrimSpace(req.SourceText))
	logger := logging.WithContext(ctx, e.logger).With(logging.String("mode", string(qc.ModeRewrite)))
	userPrompt := rewriteUserPrompt(source, count, strictness(req.Strictness))

	gate := func(versions []string) qc.Report {
		return qc.Evaluate(qc.Input{
			Mode:       qc.ModeRewrite,
			SourceText: source,
			Versions:   versions,
			Thresholds: &e.thresholds,
		})
	}
	heuristic := func(attempt int) []string {
		return rewriter.BuildRewriteVariants(source, count, attempt*rewriteSeedStep)
	}
	finalize := func(drafts []string) []string {
		normalized := rewriter.ClampAll(source, drafts)
		diffed := rewriter.EnforceSentenceDifferences(source, normalized)
		renormalized := rewriter.ClampAll(source, diffed)
		return rewriter.StripAllPlatformTags(rewriter.EnsureDistinct(source, renormalized, nil))
	}
	safe := func() []string {
		return rewriter.BuildHighSimilarityVariants(source, count)
	}
	return e.run(ctx, logger, rewriteSystemPrompt, userPrompt, count, heuristic, finalize, safe, gate)
}

// Adapt produces variants that carry the source's framework over to a product.
func (e *Engine) Adapt(ctx context.Context, req ProductRequest) (Result, error) {
	count := variantCount(req.VariantCount)
	source := rewriter.StripTrailingPlatformTag(strings.TrimSpace(req.SourceText))
	product := req.Product
	logger := logging.WithContext(ctx, e.logger).With(logging.String("mode", string(qc.ModeProductAdapt)))
	userPrompt := productUserPrompt(source, product)

	gate := func(versions []string) qc.Report {
		return qc.Evaluate(qc.Input{
			Mode:           qc.ModeProductAdapt,
			SourceText:     source,
			Versions:       versions,
			ForbiddenWords: product.ForbiddenWords,
			SellingPoints:  product.SellingPoints,
			Thresholds:     &e.thresholds,
		})
	}
	heuristic := func(attempt int) []string {
		return rewriter.BuildProductVariants(source, product.rewriterProduct(), count, attempt*productSeedStep)
	}
	finalize := func(drafts []string) []string {
		sanitized := make([]string, len(drafts))
		for i, draft := range drafts {
			sanitized[i] = rewriter.SanitizeForbidden(draft, product.ForbiddenWords)
		}
		normalized := rewriter.ClampAll(source, sanitized)
		return rewriter.StripAllPlatformTags(rewriter.EnsureDistinct(source, normalized, sanitized))
	}
	safe := func() []string {
		return finalize(rewriter.BuildProductVariants(source, product.rewriterProduct(), count, productSafeSeed))
	}
	return e.run(ctx, logger, productSystemPrompt, userPrompt, count, heuristic, finalize, safe, gate)
}

func (e *Engine) run(
	ctx context.Context,
	logger *slog.Logger,
	systemPrompt, userPrompt string,
	count int,
	heuristic func(attempt int) []string,
	finalize func(drafts []string) []string,
	safe func() []string,
	gate func(versions []string) qc.Report,
) (Result, error) {
	var (
		lastModelErr error
		lastReport   qc.Report
	)
	attempts := e.maxRegenerate + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		drafts, modelErr := e.drafts(ctx, systemPrompt, userPrompt, count)
		if modelErr != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			lastModelErr = modelErr
			logging.WarnWithContext(logger, "model drafts unavailable", "model_draft_failed",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(modelErr),
				logging.String(logging.FieldErrorHint, "check llm api_key, model and base_url"),
				logging.String(logging.FieldImpact, "using heuristic drafts for this attempt"),
			)
		}
		if drafts == nil {
			drafts = heuristic(attempt)
		}

		versions := finalize(drafts)
		report := gate(versions)
		lastReport = report
		logger.Debug("quality gate evaluated",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Bool("overall_passed", report.OverallPassed),
		)
		if report.OverallPassed {
			logger.Info("copy variants generated",
				logging.String(logging.FieldEventType, "copy_generated"),
				logging.Int(logging.FieldAttempt, attempt),
				logging.String(logging.FieldProvider, string(e.Provider())),
			)
			return Result{Versions: versions, QcReport: report, Provider: e.Provider()}, nil
		}
	}

	versions := safe()
	report := gate(versions)
	if report.OverallPassed {
		logger.Info("copy variants generated by safe fallback",
			logging.String(logging.FieldEventType, "copy_generated_safe"),
			logging.String(logging.FieldProvider, string(e.Provider())),
		)
		return Result{Versions: versions, QcReport: report, Provider: e.Provider()}, nil
	}

	if lastModelErr != nil && llm.IsUnavailable(lastModelErr) {
		return Result{}, services.Fail(services.ErrModelTimeout, "model request timed out or returned no content", lastModelErr)
	}
	return Result{}, &QualityError{Attempts: attempts, Report: lastReport}
}

// drafts returns nil drafts without error when no model is configured.
func (e *Engine) drafts(ctx context.Context, systemPrompt, userPrompt string, count int) ([]string, error) {
	if !e.modelEnabled() {
		return nil, nil
	}
	drafts, err := requestDrafts(ctx, e.drafter, systemPrompt, userPrompt, count)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func variantCount(n int) int {
	if n <= 0 {
		return DefaultVariantCount
	}
	return n
}

func strictness(value string) string {
	if value == "" {
		return StrictnessStrict
	}
	return value
}

// QualityReport returns the last gate verdict carried by a quality failure.
func QualityReport(err error) (qc.Report, bool) {
	var qe *QualityError
	if !errors.As(err, &qe) {
		return qc.Report{}, false
	}
	return qe.Report, true
}
