// Package qc scores generated copy variants against their source text and
// decides whether the set is good enough to publish.
//
// Each version is checked for length ratio, style similarity (bigram overlap
// blended with sentence rhythm), structural match of the five framework
// slots, forbidden words, and, in product mode, selling-point coverage.
package qc

import (
	"math"
	"slices"
	"strings"

	"copyengine/internal/framework"
	"copyengine/internal/textutil"
)

// Mode selects which checks apply.
type Mode string

const (
	ModeRewrite      Mode = "rewrite"
	ModeProductAdapt Mode = "product_adapt"
)

// Thresholds bound a passing version.
type Thresholds struct {
	MinLengthRatio             float64 `json:"minLengthRatio"`
	MaxLengthRatio             float64 `json:"maxLengthRatio"`
	MinStyleSimilarity         float64 `json:"minStyleSimilarity"`
	MinStructureMatchRate      float64 `json:"minStructureMatchRate"`
	MinSellingPointsPerVariant int     `json:"minSellingPointsPerVariant"`
}

// DefaultThresholds returns the stock gate settings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLengthRatio:             0.9,
		MaxLengthRatio:             1.1,
		MinStyleSimilarity:         0.82,
		MinStructureMatchRate:      0.8,
		MinSellingPointsPerVariant: 2,
	}
}

// VersionCheck holds the metrics for one version.
type VersionCheck struct {
	Index                int      `json:"index"`
	TextLength           int      `json:"textLength"`
	LengthRatio          float64  `json:"lengthRatio"`
	StyleSimilarity      float64  `json:"styleSimilarity"`
	StructureMatchRate   float64  `json:"structureMatchRate"`
	ForbiddenHits        []string `json:"forbiddenHits"`
	SellingPointsCovered []string `json:"sellingPointsCovered"`
	Passed               bool     `json:"passed"`
}

// Report is the gate verdict for a version set.
type Report struct {
	Mode                    Mode           `json:"mode"`
	SourceLength            int            `json:"sourceLength"`
	VersionChecks           []VersionCheck `json:"versionChecks"`
	AllSellingPointsCovered bool           `json:"allSellingPointsCovered"`
	OverallPassed           bool           `json:"overallPassed"`
	Thresholds              Thresholds     `json:"thresholds"`
}

// Input is everything Evaluate needs. A nil Thresholds uses the defaults.
type Input struct {
	Mode           Mode
	SourceText     string
	Versions       []string
	ForbiddenWords []string
	SellingPoints  []string
	Thresholds     *Thresholds
}

// Evaluate scores every version and sets OverallPassed when all of them pass
// and, in product mode, the versions together cover every selling point.
func Evaluate(in Input) Report {
	thresholds := DefaultThresholds()
	if in.Thresholds != nil {
		thresholds = *in.Thresholds
	}
	sourceLength := max(textutil.RuneLen(in.SourceText), 1)

	checks := make([]VersionCheck, len(in.Versions))
	for i, version := range in.Versions {
		textLength := textutil.RuneLen(version)
		check := VersionCheck{
			Index:                i,
			TextLength:           textLength,
			LengthRatio:          round4(float64(textLength) / float64(sourceLength)),
			StyleSimilarity:      StyleSimilarity(in.SourceText, version),
			StructureMatchRate:   StructureMatchRate(in.SourceText, version),
			ForbiddenHits:        ForbiddenHits(version, in.ForbiddenWords),
			SellingPointsCovered: CoveredSellingPoints(version, in.SellingPoints),
		}
		check.Passed = versionPassed(check, in.Mode, thresholds)
		checks[i] = check
	}

	allCovered := true
	if in.Mode == ModeProductAdapt {
		for _, point := range in.SellingPoints {
			covered := false
			for _, check := range checks {
				if slices.Contains(check.SellingPointsCovered, point) {
					covered = true
					break
				}
			}
			if !covered {
				allCovered = false
				break
			}
		}
	}

	overall := allCovered
	for _, check := range checks {
		if !check.Passed {
			overall = false
			break
		}
	}

	return Report{
		Mode:                    in.Mode,
		SourceLength:            sourceLength,
		VersionChecks:           checks,
		AllSellingPointsCovered: allCovered,
		OverallPassed:           overall,
		Thresholds:              thresholds,
	}
}

func versionPassed(check VersionCheck, mode Mode, t Thresholds) bool {
	switch {
	case check.LengthRatio < t.MinLengthRatio || check.LengthRatio > t.MaxLengthRatio:
		return false
	case check.StyleSimilarity < t.MinStyleSimilarity:
		return false
	case check.StructureMatchRate < t.MinStructureMatchRate:
		return false
	case len(check.ForbiddenHits) > 0:
		return false
	case mode == ModeProductAdapt && len(check.SellingPointsCovered) < t.MinSellingPointsPerVariant:
		return false
	}
	return true
}

// StyleSimilarity blends bigram Jaccard (75%) with rhythm similarity (25%),
// rounded to four decimals.
func StyleSimilarity(source, target string) float64 {
	lexical := textutil.Jaccard(textutil.Bigrams(source), textutil.Bigrams(target))
	return round4(lexical*0.75 + RhythmSimilarity(source, target)*0.25)
}

// RhythmSimilarity compares average sentence lengths: 1 minus the relative
// gap, floored at 0.
func RhythmSimilarity(source, target string) float64 {
	sourceAvg := averageSentenceLength(source)
	targetAvg := averageSentenceLength(target)
	gap := math.Abs(sourceAvg-targetAvg) / math.Max(sourceAvg, 1)
	return math.Max(0, 1-gap)
}

func averageSentenceLength(text string) float64 {
	var total, count int
	for _, piece := range strings.FieldsFunc(text, textutil.IsTerminal) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		total += textutil.RuneLen(piece)
		count++
	}
	if count == 0 {
		return float64(textutil.RuneLen(text))
	}
	return float64(total) / float64(count)
}

// StructureMatchRate is the share of framework slots that match. A slot
// matches when the source slot is empty, when the bigram overlap is at least
// 0.1, or when the target slot is non-empty at all.
func StructureMatchRate(source, target string) float64 {
	sourceSlots := framework.Extract(source).Slots()
	targetSlots := framework.Extract(target).Slots()
	matched := 0
	for i := range sourceSlots {
		s := strings.TrimSpace(sourceSlots[i])
		t := strings.TrimSpace(targetSlots[i])
		if s == "" {
			matched++
			continue
		}
		overlap := textutil.Jaccard(textutil.Bigrams(s), textutil.Bigrams(t))
		if overlap >= 0.1 || t != "" {
			matched++
		}
	}
	return round4(float64(matched) / float64(len(sourceSlots)))
}

// ForbiddenHits lists the forbidden words that appear in text after
// normalization. Words that normalize to nothing never hit.
func ForbiddenHits(text string, words []string) []string {
	normalized := textutil.NormalizeAlnum(text)
	hits := []string{}
	for _, word := range words {
		cleaned := textutil.NormalizeAlnum(word)
		if cleaned != "" && strings.Contains(normalized, cleaned) {
			hits = append(hits, word)
		}
	}
	return hits
}

// CoveredSellingPoints lists the selling points mentioned in text. Points
// that normalize to a single character are ignored.
func CoveredSellingPoints(text string, points []string) []string {
	normalized := textutil.NormalizeAlnum(text)
	covered := []string{}
	for _, point := range points {
		cleaned := textutil.NormalizeAlnum(point)
		if textutil.RuneLen(cleaned) <= 1 {
			continue
		}
		if strings.Contains(normalized, cleaned) {
			covered = append(covered, point)
		}
	}
	return covered
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
