package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"copyengine/internal/api"
	"copyengine/internal/copygen"
	"copyengine/internal/jobs"
	"copyengine/internal/qc"
)

type generateOutput struct {
	Provider jobs.Provider `json:"provider"`
	Versions []string      `json:"versions"`
	QcReport qc.Report     `json:"qcReport"`
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		source     sourceFlags
		product    productFlags
		count      int
		strictness string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate copy variants locally without a daemon",
		Long: "Runs the copy engine in-process. Product flags switch to product adaptation; " +
			"without an LLM key the local fallback drafts the versions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := source.read(cmd.InOrStdin())
			if err != nil {
				return err
			}

			var drafter copygen.Drafter
			if cfg.LLMConfigured() {
				drafter = copygen.NewModelClient(cfg)
			}
			engine := copygen.NewEngine(cfg, drafter, ctx.localLogger(cmd.ErrOrStderr()))

			var result copygen.Result
			if product.set() {
				var info copygen.ProductInfo
				if info, err = product.build(); err != nil {
					return err
				}
				if err = api.ValidateProductInfo(info); err != nil {
					return err
				}
				result, err = engine.Adapt(cmd.Context(), copygen.ProductRequest{
					SourceText:   text,
					VariantCount: count,
					Strictness:   strictness,
					Product:      info,
				})
			} else {
				result, err = engine.Rewrite(cmd.Context(), copygen.RewriteRequest{
					SourceText:   text,
					VariantCount: count,
					Strictness:   strictness,
				})
			}

			var qualityErr *copygen.QualityError
			if errors.As(err, &qualityErr) {
				if printErr := printReport(cmd, ctx, qualityErr.Report); printErr != nil {
					return printErr
				}
				return err
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput(cmd) {
				return writeJSON(cmd, generateOutput{Provider: result.Provider, Versions: result.Versions, QcReport: result.QcReport})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n\n", result.Provider)
			renderVersions(out, result.Versions)
			fmt.Fprintln(out)
			renderReport(out, result.QcReport)
			return nil
		},
	}
	source.bind(cmd)
	product.bind(cmd)
	cmd.Flags().IntVar(&count, "count", copygen.DefaultVariantCount, "Number of versions")
	cmd.Flags().StringVar(&strictness, "strictness", copygen.StrictnessStrict, "Rewrite strictness")
	return cmd
}

func printReport(cmd *cobra.Command, ctx *commandContext, report qc.Report) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, report)
	}
	renderReport(cmd.OutOrStdout(), report)
	return nil
}
