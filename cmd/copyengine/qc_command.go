package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"copyengine/internal/copygen"
	"copyengine/internal/qc"
)

var errGateFailed = errors.New("quality gate failed")

func newQCCommand(ctx *commandContext) *cobra.Command {
	var (
		source         sourceFlags
		candidates     []string
		candidatesFile string
		mode           string
		forbidden      []string
		sellingPoints  []string
	)
	cmd := &cobra.Command{
		Use:   "qc",
		Short: "Score candidate versions against a source script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := source.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			versions, err := loadCandidates(candidates, candidatesFile)
			if err != nil {
				return err
			}
			gateMode := qc.Mode(strings.TrimSpace(mode))
			switch gateMode {
			case qc.ModeRewrite, qc.ModeProductAdapt:
			default:
				return fmt.Errorf("--mode must be %q or %q", qc.ModeRewrite, qc.ModeProductAdapt)
			}

			thresholds := copygen.Thresholds(cfg)
			report := qc.Evaluate(qc.Input{
				Mode:           gateMode,
				SourceText:     text,
				Versions:       versions,
				ForbiddenWords: forbidden,
				SellingPoints:  sellingPoints,
				Thresholds:     &thresholds,
			})
			if err := printReport(cmd, ctx, report); err != nil {
				return err
			}
			if !report.OverallPassed {
				return errGateFailed
			}
			return nil
		},
	}
	source.bind(cmd)
	cmd.Flags().StringArrayVar(&candidates, "candidate", nil, "Candidate version (repeatable)")
	cmd.Flags().StringVar(&candidatesFile, "candidates-file", "", "JSON file with a string array or {\"versions\": [...]}")
	cmd.Flags().StringVar(&mode, "mode", string(qc.ModeRewrite), "Gate mode: rewrite or product_adapt")
	cmd.Flags().StringArrayVar(&forbidden, "forbidden", nil, "Forbidden word (repeatable)")
	cmd.Flags().StringArrayVar(&sellingPoints, "selling-point", nil, "Selling point to look for (repeatable)")
	return cmd
}

func loadCandidates(inline []string, path string) ([]string, error) {
	versions := append([]string(nil), inline...)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read candidates: %w", err)
		}
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			var wrapped struct {
				Versions []string `json:"versions"`
			}
			if err := json.Unmarshal(data, &wrapped); err != nil {
				return nil, fmt.Errorf("parse candidates: %w", err)
			}
			list = wrapped.Versions
		}
		versions = append(versions, list...)
	}
	if len(versions) == 0 {
		return nil, errors.New("--candidate or --candidates-file is required")
	}
	return versions, nil
}
