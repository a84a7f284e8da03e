package qc

import (
	"math"
	"testing"
)

const closeSource = "你是不是也有这个困扰？每天忙到很晚，事情还是做不完。后来我调整了方法，把任务按优先级拆开，效率明显提升。你也可以试试看。"

func closeVariants() []string {
	return []string{
		"你是不是也有这个困扰？每天忙到很晚，事情还是做不完。后来我调整了做法，把任务按优先级拆开，效率明显提升。你也可以试试看。",
		"你是不是也有这个难题？每天忙到很晚，事情还是做不完。后来我调整了方法，把任务按优先级拆开，效率明显提升。你也可以试试看。",
		"你是不是也有这个困扰？每天忙到很晚，事情还是做不完。后来我换了个方法，把任务按优先级拆开，效率明显提升。你也可以试试看。",
	}
}

func TestEvaluatePassesCloseVariants(t *testing.T) {
	report := Evaluate(Input{Mode: ModeRewrite, SourceText: closeSource, Versions: closeVariants()})
	if !report.OverallPassed {
		t.Fatalf("expected overall pass, got %+v", report)
	}
	if !report.AllSellingPointsCovered {
		t.Fatal("rewrite mode should always report selling points covered")
	}
	if report.Thresholds != DefaultThresholds() {
		t.Fatalf("unexpected thresholds %+v", report.Thresholds)
	}
}

func TestForbiddenWordFlipsOnlyThatVersion(t *testing.T) {
	versions := closeVariants()
	versions[1] = "你是不是也有这个难题？每天忙到很晚，事情还是做不完。后来我调整了方法，把任务按优先级拆开，效率最强提升。你也可以试试看。"
	report := Evaluate(Input{
		Mode:           ModeRewrite,
		SourceText:     closeSource,
		Versions:       versions,
		ForbiddenWords: []string{"最强"},
	})
	if report.OverallPassed {
		t.Fatal("expected overall failure")
	}
	for i, check := range report.VersionChecks {
		want := i != 1
		if check.Passed != want {
			t.Fatalf("version %d passed=%v, want %v (%+v)", i, check.Passed, want, check)
		}
	}
	if hits := report.VersionChecks[1].ForbiddenHits; len(hits) != 1 || hits[0] != "最强" {
		t.Fatalf("unexpected hits %v", hits)
	}
}

func TestProductModeForbiddenAndCoverage(t *testing.T) {
	report := Evaluate(Input{
		Mode:           ModeProductAdapt,
		SourceText:     "今天聊聊一款产品怎么选。",
		Versions:       []string{"今天聊聊最强产品怎么选。", "第二版内容", "第三版内容"},
		ForbiddenWords: []string{"最强"},
		SellingPoints:  []string{"吸收快", "不粘腻", "温和"},
	})
	if report.VersionChecks[0].Passed {
		t.Fatal("version with forbidden word should fail")
	}
	if report.AllSellingPointsCovered || report.OverallPassed {
		t.Fatalf("coverage should fail: %+v", report)
	}
}

func TestProductModeCoverageUnion(t *testing.T) {
	source := "这款面霜吸收快，而且不粘腻。"
	versions := []string{
		"这款面霜吸收快，而且不粘腻。",
		"这款面霜不粘腻，而且很温和。",
		"这款面霜很温和，而且吸收快。",
	}
	report := Evaluate(Input{
		Mode:          ModeProductAdapt,
		SourceText:    source,
		Versions:      versions,
		SellingPoints: []string{"吸收快", "不粘腻", "温和"},
		Thresholds:    &Thresholds{MinLengthRatio: 0.5, MaxLengthRatio: 1.5, MinSellingPointsPerVariant: 2},
	})
	if !report.AllSellingPointsCovered {
		t.Fatalf("expected union coverage, got %+v", report.VersionChecks)
	}
	if !report.OverallPassed {
		t.Fatalf("expected pass with relaxed thresholds, got %+v", report)
	}
}

func TestCoveredSellingPointsIgnoresSingleCharacter(t *testing.T) {
	got := CoveredSellingPoints("好用又便宜", []string{"好", "便宜", "！"})
	if len(got) != 1 || got[0] != "便宜" {
		t.Fatalf("CoveredSellingPoints = %v", got)
	}
}

func TestForbiddenHitsIgnoresPunctuationOnlyWords(t *testing.T) {
	if got := ForbiddenHits("一切正常。", []string{"。", " "}); len(got) != 0 {
		t.Fatalf("ForbiddenHits = %v", got)
	}
	if got := ForbiddenHits("No.1 的产品", []string{"NO1"}); len(got) != 1 {
		t.Fatalf("ForbiddenHits normalization = %v", got)
	}
}

func TestRhythmSimilarity(t *testing.T) {
	if got := RhythmSimilarity("一二三四。", "一二三四。"); got != 1 {
		t.Fatalf("identical rhythm = %v", got)
	}
	if got := RhythmSimilarity("一二三四。", "一二。"); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("half rhythm = %v", got)
	}
	if got := RhythmSimilarity("一二。", "一二三四五六七八。"); got != 0 {
		t.Fatalf("floored rhythm = %v", got)
	}
}

func TestStructureMatchRateCreditsNonEmptySlots(t *testing.T) {
	if got := StructureMatchRate(closeSource, "完全无关的内容。"); got != 1 {
		t.Fatalf("StructureMatchRate = %v, want 1", got)
	}
	if got := StructureMatchRate(closeSource, ""); got != 0 {
		t.Fatalf("StructureMatchRate(empty) = %v, want 0", got)
	}
	if got := StructureMatchRate("", "任何内容。"); got != 1 {
		t.Fatalf("StructureMatchRate(empty source) = %v, want 1", got)
	}
}

func TestEmptySourceLengthCountsAsOne(t *testing.T) {
	report := Evaluate(Input{Mode: ModeRewrite, SourceText: "", Versions: []string{"a"}})
	if report.SourceLength != 1 || report.VersionChecks[0].LengthRatio != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}
