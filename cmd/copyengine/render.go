package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"copyengine/internal/copygen"
	"copyengine/internal/qc"
	"copyengine/internal/transcript"
)

func renderJobView(out io.Writer, view copygen.JobView) {
	fmt.Fprintf(out, "Job:    %s\n", view.JobID)
	fmt.Fprintf(out, "Status: %s\n", view.Status)
	if view.ErrorCode != "" {
		fmt.Fprintf(out, "Error:  %s: %s\n", view.ErrorCode, view.ErrorMessage)
	}
	if len(view.Versions) > 0 {
		fmt.Fprintln(out)
		renderVersions(out, view.Versions)
	}
	if view.QcReport != nil {
		fmt.Fprintln(out)
		renderReport(out, *view.QcReport)
	}
}

func renderTaskView(out io.Writer, view transcript.TaskView) {
	fmt.Fprintf(out, "Task:   %s\n", view.TaskID)
	fmt.Fprintf(out, "Status: %s\n", view.Status)
	if view.ErrorCode != "" {
		fmt.Fprintf(out, "Error:  %s: %s\n", view.ErrorCode, view.ErrorMessage)
	}
	if view.PlayURL != "" {
		fmt.Fprintf(out, "Play:   %s\n", view.PlayURL)
	}
	if view.TranscriptText != "" {
		fmt.Fprintf(out, "\n%s\n", view.TranscriptText)
	}
}

func renderVersions(out io.Writer, versions []string) {
	rows := make([][]string, 0, len(versions))
	for i, version := range versions {
		rows = append(rows, []string{strconv.Itoa(i + 1), version})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Version"}, rows, []columnAlignment{alignRight, alignLeft}))
}

func renderReport(out io.Writer, report qc.Report) {
	headers := []string{"#", "Length", "Ratio", "Style", "Structure", "Forbidden", "Selling points", "Passed"}
	rows := make([][]string, 0, len(report.VersionChecks))
	for _, check := range report.VersionChecks {
		rows = append(rows, []string{
			strconv.Itoa(check.Index + 1),
			strconv.Itoa(check.TextLength),
			formatRatio(check.LengthRatio),
			formatRatio(check.StyleSimilarity),
			formatRatio(check.StructureMatchRate),
			joinOrDash(check.ForbiddenHits),
			joinOrDash(check.SellingPointsCovered),
			yesNo(check.Passed),
		})
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
	fmt.Fprintf(out, "Mode: %s  Source length: %d  Overall passed: %s\n",
		report.Mode, report.SourceLength, yesNo(report.OverallPassed))
	if report.Mode == qc.ModeProductAdapt {
		fmt.Fprintf(out, "All selling points covered: %s\n", yesNo(report.AllSellingPointsCovered))
	}
}

func formatRatio(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
