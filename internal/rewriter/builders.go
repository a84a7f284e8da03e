package rewriter

import (
	"fmt"
	"regexp"
	"strings"

	"copyengine/internal/framework"
)

// Longest alternatives first so "这个" is replaced as a unit.
var productPronounPattern = regexp.MustCompile(`这件事|这个|这|它`)

// Product carries the product facts interpolated into adapted drafts.
type Product struct {
	Name           string
	Category       string
	SellingPoints  []string
	TargetAudience string
	CTA            string
}

// BuildRewriteVariants drafts count variants by rewriting each framework slot
// of source with seeds derived from seedBase.
func BuildRewriteVariants(source string, count, seedBase int) []string {
	f := framework.Extract(source)
	variants := make([]string, 0, count)
	for i := 0; i < count; i++ {
		seed := seedBase + i*7
		rewritten := framework.Compose(framework.Framework{
			Hook:      RewriteSegment(f.Hook, seed),
			PainPoint: RewriteSegment(f.PainPoint, seed+1),
			Solution:  RewriteSegment(f.Solution, seed+2),
			Evidence:  RewriteSegment(f.Evidence, seed+3),
			CTA:       RewriteSegment(f.CTA, seed+4),
		})
		variants = append(variants, ClampLength(source, rewritten))
	}
	return variants
}

// AllocatePoints picks the selling points a variant must mention: the point at
// the variant index and the next one, cyclically.
func AllocatePoints(points []string, variant int) []string {
	if len(points) == 0 {
		return nil
	}
	first := points[variant%len(points)]
	second := points[(variant+1)%len(points)]
	if first == second {
		return []string{first}
	}
	return []string{first, second}
}

func adaptHook(hook string, p Product) string {
	if strings.TrimSpace(hook) == "" {
		return fmt.Sprintf("如果你是%s，先看下%s。", p.TargetAudience, p.Name)
	}
	return productPronounPattern.ReplaceAllLiteralString(hook, p.Name)
}

func adaptCTA(cta string, p Product) string {
	if custom := strings.TrimSpace(p.CTA); custom != "" {
		return custom
	}
	if strings.TrimSpace(cta) == "" {
		return fmt.Sprintf("想了解%s，现在就试试。", p.Name)
	}
	return productPronounPattern.ReplaceAllLiteralString(cta, p.Name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// BuildProductVariants drafts count variants that carry the source's framework
// over to the product. Every variant mentions two selling points chosen
// round-robin so the set as a whole covers the list.
func BuildProductVariants(source string, p Product, count, seedBase int) []string {
	f := framework.Extract(source)
	solutionBase := firstNonEmpty(f.Solution, f.PainPoint, f.Hook)
	evidenceBase := firstNonEmpty(f.Evidence, f.Solution, f.PainPoint)
	variants := make([]string, 0, count)
	for i := 0; i < count; i++ {
		pointText := strings.Join(AllocatePoints(p.SellingPoints, i), "，")
		seed := seedBase + i*11
		adapted := framework.Compose(framework.Framework{
			Hook: RewriteSegment(adaptHook(f.Hook, p), seed),
			PainPoint: RewriteSegment(
				fmt.Sprintf("%s 尤其是%s，更在意效率和体验。", f.PainPoint, p.TargetAudience), seed+1),
			Solution: RewriteSegment(
				fmt.Sprintf("%s 如果换成%s这类%s，关键是%s。", solutionBase, p.Name, p.Category, pointText), seed+2),
			Evidence: RewriteSegment(
				fmt.Sprintf("%s 实际落地时，%s的优势是%s，整体更顺手。", evidenceBase, p.Name, pointText), seed+3),
			CTA: RewriteSegment(adaptCTA(f.CTA, p), seed+4),
		})
		variants = append(variants, ClampLength(source, adapted))
	}
	return variants
}

// BuildHighSimilarityVariants produces count variants that stay lexically
// close to source: every sentence is micro-rewritten, then the usual
// distinctness passes run. It is the last-resort builder when regular drafts
// keep failing the quality gate.
func BuildHighSimilarityVariants(source string, count int) []string {
	cleaned := StripTrailingPlatformTag(source)
	variants := make([]string, 0, count)
	for i := 0; i < count; i++ {
		variants = append(variants, ClampLength(cleaned, MutateAllSentences(cleaned, i)))
	}
	diffed := EnforceSentenceDifferences(cleaned, variants)
	normalized := ClampAll(cleaned, diffed)
	return StripAllPlatformTags(EnsureDistinct(cleaned, normalized, nil))
}
