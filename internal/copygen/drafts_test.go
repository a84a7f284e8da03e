package copygen

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractVersions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr error
	}{
		{
			name:    "bare object",
			content: `{"versions": ["一", "二", "三"]}`,
			want:    []string{"一", "二", "三"},
		},
		{
			name:    "fenced block with prose",
			content: "好的：\n```json\n{\"versions\": [\" 一 \", \"二\", \"三\"]}\n```\n以上。",
			want:    []string{"一", "二", "三"},
		},
		{
			name:    "extra versions are cut",
			content: `{"versions": ["一", "二", "三", "四"]}`,
			want:    []string{"一", "二", "三"},
		},
		{
			name:    "blank entries do not count",
			content: `{"versions": ["一", "  ", "二"]}`,
			wantErr: errCountInvalid,
		},
		{
			name:    "not json",
			content: "抱歉，我无法完成",
			wantErr: errSchemaInvalid,
		},
		{
			name:    "missing versions",
			content: `{"items": ["一", "二", "三"]}`,
			wantErr: errSchemaInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractVersions(tt.content, 3)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractVersions: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProductUserPrompt(t *testing.T) {
	prompt := productUserPrompt("原文。", ProductInfo{
		ProductName:    "轻面霜",
		Category:       "护肤品",
		SellingPoints:  []string{"吸收快", "不粘腻", "温和"},
		TargetAudience: "上班族",
		CTA:            "点击下方链接",
	})
	for _, want := range []string{"原文案：\n原文。", "产品名：轻面霜", "卖点：吸收快；不粘腻；温和", "禁用词：无", "合规备注：无", "请直接返回JSON。"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if got := rewriteUserPrompt("原文。", 3, "strict"); !strings.Contains(got, "variantCount=3, strictness=strict") {
		t.Fatalf("unexpected rewrite prompt %q", got)
	}
}
