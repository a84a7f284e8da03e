package rewriter

type substitution struct {
	from string
	to   []string
}

var rhythmWords = []string{"其实", "说白了", "关键是", "更重要的是", "换句话说"}

var connectorWords = []string{"所以", "然后", "同时", "而且", "最后"}

// Applied in order; later entries see the output of earlier ones.
var synonymTable = []substitution{
	{"真的", []string{"确实", "的确", "实打实"}},
	{"马上", []string{"立刻", "现在就", "当下"}},
	{"非常", []string{"很", "特别", "相当"}},
	{"大家", []string{"你们", "很多人", "大多数人"}},
	{"问题", []string{"困扰", "痛点", "难题"}},
	{"方法", []string{"做法", "方案", "路径"}},
	{"简单", []string{"省心", "不复杂", "容易上手"}},
}

// Only the first matching entry is applied per sentence.
var microTable = []substitution{
	{"昨天", []string{"前一天", "前阵子", "那天"}},
	{"随手", []string{"顺手", "顺手就", "随手就"}},
	{"立马", []string{"马上", "立刻", "立马就"}},
	{"马上", []string{"立马", "立刻", "马上就"}},
	{"真的", []string{"确实", "真的挺", "真的是"}},
	{"特别", []string{"挺", "蛮", "比较"}},
	{"适合", []string{"合适", "对味", "适配"}},
	{"关键", []string{"重点", "要点", "关键点"}},
	{"现在", []string{"这会", "当下", "眼下"}},
	{"看看", []string{"看下", "瞅下", "瞧瞧"}},
	{"真实", []string{"真是", "确实", "真正"}},
	{"传统", []string{"老式", "传统式", "老法子"}},
	{"吸满", []string{"吸饱", "裹满", "沾满"}},
	{"入口先是", []string{"入口先有", "入口先尝", "入口先感到"}},
	{"回味还有", []string{"回味仍有", "回口还有", "回味还留着"}},
	{"最绝的是", []string{"更绝的是", "最妙的是", "最出彩的是"}},
	{"往面里一放", []string{"往面里一加", "放进面里", "往面里一拌"}},
	{"舒服", []string{"舒服些", "舒服点", "舒坦"}},
}

// Pronoun and intensifier swaps tried when no table entry matched.
var pronounTable = []substitution{
	{"这个", []string{"这款", "这瓶"}},
	{"它", []string{"这", "这款"}},
	{"很", []string{"挺", "蛮"}},
	{"真", []string{"确实", "的确"}},
	{"就", []string{"就会", "就能"}},
}

var (
	commaParticles  = []string{"就", "还", "也"}
	periodParticles = []string{"确实", "其实", "说实话"}
)

// FillerText pads drafts that come out shorter than the length band.
const FillerText = "这点很关键。照着做就行。整体节奏会更顺。"
