// internal/protocol/composer.go
package protocol

import (
	"fmt"
	"strings"

	"github.com/Corphon/ViralGen/internal/models"
)

// 分类/调性的措辞提示。只影响文案风格，解析器不依赖这些内容。
var categoryHints = map[models.Category]string{
	models.CategoryTech:      "If the niche is Tech, lead with a surprising spec or a before/after demo and keep jargon light.",
	models.CategoryComedy:    "If the niche is Comedy, build around a relatable setup and a fast punchline in the first 2 seconds.",
	models.CategoryEducation: "If the niche is Education, promise one concrete takeaway and deliver it as numbered steps.",
	models.CategoryFitness:   "If the niche is Fitness, show the transformation or the rep count early and keep cues short.",
	models.CategoryBusiness:  "If the niche is Business, open with a number (revenue, hours saved, cost) and end with a lesson.",
	models.CategoryLifestyle: "If the niche is Lifestyle, lean into aesthetic visuals, routines and soft storytelling.",
	models.CategoryGaming:    "If the niche is Gaming, hook with the clutch moment or the secret, then explain how.",
	models.CategoryFood:      "If the niche is Food, open on the money shot and list ingredients in the caption.",
}

var vibeHints = map[models.Vibe]string{
	models.VibeHighEnergy:    "Vibe High Energy: short sentences, caps for emphasis, fast cuts.",
	models.VibeAesthetic:     "Vibe Aesthetic/Calm: lowercase styling, gentle pacing, minimal emojis.",
	models.VibeControversial: "Vibe Controversial: take a clear stance and invite disagreement without being hateful.",
	models.VibeFunny:         "Vibe Funny: self-aware humor, meme formats, playful emojis.",
	models.VibeEducational:   "Vibe Educational: clear structure, facts first, one call to save the post.",
	models.VibeStorytime:     "Vibe Storytime: first person, cliffhanger opening, payoff at the end.",
}

// Composer 根据语法把表单变量渲染为单条提示词。纯函数，无副作用。
type Composer struct {
	grammar Grammar
}

// NewComposer 创建提示词构建器
func NewComposer(grammar Grammar) *Composer {
	return &Composer{grammar: grammar}
}

// Compose 依次输出：角色设定、三个变量、分隔语法声明、输出骨架、各平台要求、风格提示
func (c *Composer) Compose(req models.GenerationRequest) string {
	var b strings.Builder
	g := c.grammar

	b.WriteString("Act as a social media algorithm expert. Create a viral content strategy for:\n")
	fmt.Fprintf(&b, "Topic: %s | Niche: %s | Vibe: %s\n\n", req.Topic(), req.Category(), req.Vibe())

	fmt.Fprintf(&b, "Provide the output in exactly %d sections, in this order, separated by %q.\n",
		len(g.Platforms), g.Outer)
	fmt.Fprintf(&b, "Inside each section, separate the fields with %q and output them in the listed order.\n", g.Inner)
	fmt.Fprintf(&b, "Never use %q or %q anywhere else.\n\n", g.Outer, g.Inner)

	b.WriteString("OUTPUT SKELETON:\n")
	for i, s := range g.Platforms {
		if i > 0 {
			b.WriteString(g.Outer)
			b.WriteString("\n")
		}
		b.WriteString(s.Header)
		b.WriteString("\n")
		placeholders := make([]string, len(s.Fields))
		for j, f := range s.Fields {
			placeholders[j] = "<" + f + ">"
		}
		b.WriteString(strings.Join(placeholders, g.Inner))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, s := range g.Platforms {
		b.WriteString(s.Header)
		b.WriteString("\n")
		if len(s.Fields) > 1 {
			fmt.Fprintf(&b, "- Fields: %s (separated by %q)\n", strings.Join(s.Fields, ", "), g.Inner)
		}
		for _, r := range s.Requirements {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("STYLE NOTES:\n")
	if hint, ok := categoryHints[req.Category()]; ok {
		b.WriteString("- ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	if hint, ok := vibeHints[req.Vibe()]; ok {
		b.WriteString("- ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString("\nDO NOT include conversational filler. Just the data.\n")
	b.WriteString("Format specifically so it can be copy pasted easily.\n")

	return b.String()
}
