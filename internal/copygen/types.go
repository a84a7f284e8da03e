package copygen

import (
	"fmt"

	"copyengine/internal/jobs"
	"copyengine/internal/qc"
	"copyengine/internal/rewriter"
	"copyengine/internal/services"
)

const (
	// DefaultVariantCount is the only variant count the API accepts.
	DefaultVariantCount = 3
	// StrictnessStrict is the only strictness level.
	StrictnessStrict = "strict"
)

// ProductInfo describes the product placed into the source script.
type ProductInfo struct {
	ProductName     string   `json:"productName"`
	Category        string   `json:"category"`
	SellingPoints   []string `json:"sellingPoints"`
	TargetAudience  string   `json:"targetAudience"`
	CTA             string   `json:"cta"`
	ForbiddenWords  []string `json:"forbiddenWords,omitempty"`
	ComplianceNotes []string `json:"complianceNotes,omitempty"`
}

func (p ProductInfo) rewriterProduct() rewriter.Product {
	return rewriter.Product{
		Name:           p.ProductName,
		Category:       p.Category,
		SellingPoints:  p.SellingPoints,
		TargetAudience: p.TargetAudience,
		CTA:            p.CTA,
	}
}

// RewriteRequest asks for close rewrites of SourceText.
type RewriteRequest struct {
	SourceText   string
	VariantCount int
	Strictness   string
}

// ProductRequest asks for variants of SourceText that promote Product.
type ProductRequest struct {
	SourceText   string
	VariantCount int
	Strictness   string
	Product      ProductInfo
}

// Result is a passing version set.
type Result struct {
	Versions []string
	QcReport qc.Report
	Provider jobs.Provider
}

// QualityError reports that no attempt passed the quality gate. Report is the
// verdict of the last regular attempt.
type QualityError struct {
	Attempts int
	Report   qc.Report
}

func (e *QualityError) Error() string {
	failing := 0
	for _, check := range e.Report.VersionChecks {
		if !check.Passed {
			failing++
		}
	}
	return fmt.Sprintf("quality gate failed after %d attempts (%d of %d versions failing)",
		e.Attempts, failing, len(e.Report.VersionChecks))
}

func (e *QualityError) Unwrap() error { return services.ErrQCFailed }
