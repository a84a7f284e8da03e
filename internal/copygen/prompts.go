package copygen

import (
	"fmt"
	"strings"
)

var rewriteSystemPrompt = strings.Join([]string{
	"你是短视频文案改写专家。",
	"目标：在不改变原文核心含义和框架顺序前提下，生成3个高度接近原文风格的版本。",
	"必须满足：",
	`1) 输出JSON格式：{"versions": ["v1", "v2", "v3"]}；不要输出其他字段。`,
	"2) 每个版本字数在原文的90%-110%。",
	"3) 不新增原文不存在的事实信息。",
	"4) 三个版本做轻微差异，只做词句微调。",
}, "\n")

var productSystemPrompt = strings.Join([]string{
	"你是短视频产品植入改写专家。",
	"目标：按原文结构框架（Hook/痛点/解决方案/证据/CTA）将产品信息自然替换，生成3个版本。",
	"必须满足：",
	`1) 输出JSON格式：{"versions": ["v1", "v2", "v3"]}；不要输出其他字段。`,
	"2) 每个版本字数在原文的90%-110%。",
	"3) 语气和节奏与原文一致，禁止改成公文体或硬广腔。",
	"4) 每个版本至少覆盖2个卖点，三个版本合计覆盖全部卖点。",
	"5) 禁止出现禁用词。",
}, "\n")

func rewriteUserPrompt(source string, count int, strictness string) string {
	return strings.Join([]string{
		"原文案：\n" + source,
		fmt.Sprintf("variantCount=%d, strictness=%s", count, strictness),
		"请直接返回JSON。",
	}, "\n\n")
}

func productUserPrompt(source string, p ProductInfo) string {
	return strings.Join([]string{
		"原文案：\n" + source,
		"产品名：" + p.ProductName,
		"品类：" + p.Category,
		"目标人群：" + p.TargetAudience,
		"CTA：" + p.CTA,
		"卖点：" + strings.Join(p.SellingPoints, "；"),
		"禁用词：" + joinOrNone(p.ForbiddenWords),
		"合规备注：" + joinOrNone(p.ComplianceNotes),
		"请直接返回JSON。",
	}, "\n\n")
}

func joinOrNone(values []string) string {
	if joined := strings.Join(values, "；"); joined != "" {
		return joined
	}
	return "无"
}
