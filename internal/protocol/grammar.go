// internal/protocol/grammar.go
package protocol

import "github.com/Corphon/ViralGen/internal/models"

const (
	// OuterDelimiter 分隔平台段落
	OuterDelimiter = "|||"
	// InnerDelimiter 分隔段落内字段，自然文本中几乎不会出现
	InnerDelimiter = "~SEPARATOR~"
)

// PlatformSchema 一个平台槽位的声明：标题、字段顺序与写作要求
type PlatformSchema struct {
	Platform     models.Platform `json:"platform"`
	DisplayName  string          `json:"display_name"`
	Header       string          `json:"header"`        // 提示词中要求模型输出的段落标题
	HeaderLabels []string        `json:"header_labels"` // 解析时剥离的标题，按顺序首个命中生效
	Fields       []string        `json:"fields"`        // 按位置解码
	Requirements []string        `json:"requirements"`  // 写作要求，每条对应一个字段
}

// PrimaryField 第一个字段
func (s PlatformSchema) PrimaryField() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[0]
}

// Grammar 两级分隔语法：外层分隔平台，内层分隔字段
type Grammar struct {
	Outer     string           `json:"outer_delimiter"`
	Inner     string           `json:"inner_delimiter"`
	Platforms []PlatformSchema `json:"platforms"`
}

// DefaultGrammar 返回三平台的标准语法。新增平台只需追加一个 PlatformSchema。
func DefaultGrammar() Grammar {
	return Grammar{
		Outer: OuterDelimiter,
		Inner: InnerDelimiter,
		Platforms: []PlatformSchema{
			{
				Platform:     models.PlatformInstagram,
				DisplayName:  "Instagram Reels",
				Header:       "SECTION 1: INSTAGRAM",
				HeaderLabels: []string{"SECTION 1: INSTAGRAM REELS", "SECTION 1: INSTAGRAM"},
				Fields:       []string{"caption", "hashtags"},
				Requirements: []string{
					"CAPTION: SEO optimized, a scroll-stopping first line, line breaks and emojis. Mention the visual hook and a trending audio vibe.",
					"HASHTAGS: 30 hashtags on one line, mixing 1M+ tags with niche tags.",
				},
			},
			{
				Platform:     models.PlatformYouTubeShorts,
				DisplayName:  "YouTube Shorts",
				Header:       "SECTION 2: YOUTUBE SHORTS",
				HeaderLabels: []string{"SECTION 2: YOUTUBE SHORTS"},
				Fields:       []string{"title", "description", "tags"},
				Requirements: []string{
					"TITLE: one high-CTR title, under 70 characters.",
					"DESCRIPTION: description box content, keyword rich, ending with a loop concept that connects the end to the start.",
					"TAGS: 15 hidden SEO tags, comma separated.",
				},
			},
			{
				Platform:     models.PlatformXTwitter,
				DisplayName:  "X (Twitter)",
				Header:       "SECTION 3: X (TWITTER)",
				HeaderLabels: []string{"SECTION 3: X (TWITTER)", "SECTION 3: X"},
				Fields:       []string{"tweet"},
				Requirements: []string{
					"TWEET: a punchy hook tweet without hashtags, followed by a 3 bullet thread body and one engagement question.",
				},
			},
		},
	}
}

// FieldKeys 返回 "platform.field" 形式的全部字段键，按声明顺序
func (g Grammar) FieldKeys() []string {
	var keys []string
	for _, s := range g.Platforms {
		for _, f := range s.Fields {
			keys = append(keys, fieldKey(s.Platform, f))
		}
	}
	return keys
}

func fieldKey(platform models.Platform, field string) string {
	return string(platform) + "." + field
}
