package framework

import (
	"reflect"
	"testing"
)

func TestExtractFillsFiveSlots(t *testing.T) {
	source := "你是不是也总觉得时间不够用？每天加班还是做不完。后来我换了一个方法。把重点任务提前拆分，效率明显提升。你也可以现在试试。"
	got := Extract(source)
	want := Framework{
		Hook:      "你是不是也总觉得时间不够用？",
		PainPoint: "每天加班还是做不完。",
		Solution:  "后来我换了一个方法。",
		Evidence:  "把重点任务提前拆分，效率明显提升。",
		CTA:       "你也可以现在试试。",
	}
	if got != want {
		t.Fatalf("Extract() = %#v, want %#v", got, want)
	}
}

func TestExtractFallbacks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Framework
	}{
		{"blank", "   ", Framework{}},
		{
			name: "single sentence fills every slot",
			text: "只有一句话。",
			want: Framework{Hook: "只有一句话。", PainPoint: "只有一句话。", Solution: "只有一句话。", Evidence: "只有一句话。", CTA: "只有一句话。"},
		},
		{
			name: "three sentences share the middle",
			text: "开头。中间。结尾。",
			want: Framework{Hook: "开头。", PainPoint: "中间。", Solution: "中间。", Evidence: "中间。", CTA: "结尾。"},
		},
		{
			name: "lines split before punctuation",
			text: "第一行\n\n第二行  有空格\n第三行",
			want: Framework{Hook: "第一行", PainPoint: "第二行 有空格", Solution: "第二行 有空格", Evidence: "第二行 有空格", CTA: "第三行"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.text); got != tt.want {
				t.Fatalf("Extract(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestComposeKeepsOrderAndSkipsEmpty(t *testing.T) {
	got := Compose(Framework{Hook: "A", PainPoint: "B", Solution: "C", Evidence: "D", CTA: "E"})
	if got != "A\nB\nC\nD\nE" {
		t.Fatalf("Compose() = %q", got)
	}
	got = Compose(Framework{Hook: " A ", Solution: "C", CTA: ""})
	if got != "A\nC" {
		t.Fatalf("Compose() = %q", got)
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("a。b！\n c?")
	want := []string{"a。", "b！", "c?"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sentences() = %#v, want %#v", got, want)
	}
}
