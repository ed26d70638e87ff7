// internal/protocol/extractor.go
package protocol

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Corphon/ViralGen/internal/models"
)

// Extractor 把生成文本按语法逐位置解码为 StructuredResult。
// 生成方不保证遵守语法，所以解析永远返回形状完整的结果。
type Extractor struct {
	grammar Grammar
}

// beforeSlot 测试中用来注入槽位解码失败
var beforeSlot func(schema PlatformSchema)

// NewExtractor 创建解析器
func NewExtractor(grammar Grammar) *Extractor {
	return &Extractor{grammar: grammar}
}

// Grammar 返回解析器使用的语法
func (e *Extractor) Grammar() Grammar {
	return e.grammar
}

// Extract 解析原始文本。任何异常都在边界处转换为全部占位的结果。
func (e *Extractor) Extract(raw string) (result models.StructuredResult, report models.ExtractionReport) {
	defer func() {
		if r := recover(); r != nil {
			result = e.filled(models.SentinelError)
			report = models.ExtractionReport{
				Recovered:      true,
				Failure:        fmt.Sprint(r),
				SentinelFields: e.grammar.FieldKeys(),
			}
		}
	}()

	result = make(models.StructuredResult, len(e.grammar.Platforms))

	if !strings.Contains(raw, e.grammar.Outer) {
		// 模型忘了外层分隔符：全文归第一个平台，其余指向第一个标签页
		report.SegmentCount = 1
		for i, schema := range e.grammar.Platforms {
			if i == 0 {
				result[schema.Platform] = e.decodeSlot(schema, raw, &report)
				continue
			}
			primary := schema.PrimaryField()
			fields := make(models.Fields, len(schema.Fields))
			for _, name := range schema.Fields {
				if name == primary {
					fields[name] = models.SentinelSeeOtherTab
				} else {
					fields[name] = models.SentinelNoData
				}
				report.SentinelFields = append(report.SentinelFields, fieldKey(schema.Platform, name))
			}
			result[schema.Platform] = fields
		}
		return result, report
	}

	report.OuterDelimiterFound = true
	segments := strings.Split(raw, e.grammar.Outer)
	report.SegmentCount = len(segments)

	for i, schema := range e.grammar.Platforms {
		if i >= len(segments) {
			result[schema.Platform] = e.sentinelSlot(schema, &report)
			continue
		}
		result[schema.Platform] = e.decodeSlot(schema, segments[i], &report)
	}

	return result, report
}

// ExtractResponse 只解析成功的响应；失败的响应原样返回传输错误，不做解析
func (e *Extractor) ExtractResponse(resp models.RawResponse) (models.StructuredResult, models.ExtractionReport, error) {
	if !resp.Ok() {
		return nil, models.ExtractionReport{}, resp.Err()
	}
	result, report := e.Extract(resp.Text())
	return result, report, nil
}

// decodeSlot 通用的按声明解码：剥离标题，按内层分隔符切分并按位置赋值
func (e *Extractor) decodeSlot(schema PlatformSchema, text string, report *models.ExtractionReport) models.Fields {
	if beforeSlot != nil {
		beforeSlot(schema)
	}
	text = stripHeader(strings.TrimSpace(text), schema.HeaderLabels)
	text = strings.TrimSpace(text)

	var pieces []string
	if strings.Contains(text, e.grammar.Inner) {
		pieces = strings.Split(text, e.grammar.Inner)
	} else {
		pieces = []string{text}
	}

	fields := make(models.Fields, len(schema.Fields))
	for i, name := range schema.Fields {
		value := ""
		if i < len(pieces) {
			value = strings.TrimSpace(pieces[i])
		}
		if value == "" {
			value = models.SentinelNoData
			report.SentinelFields = append(report.SentinelFields, fieldKey(schema.Platform, name))
		}
		fields[name] = value
	}
	return fields
}

func (e *Extractor) sentinelSlot(schema PlatformSchema, report *models.ExtractionReport) models.Fields {
	fields := make(models.Fields, len(schema.Fields))
	for _, name := range schema.Fields {
		fields[name] = models.SentinelNoData
		report.SentinelFields = append(report.SentinelFields, fieldKey(schema.Platform, name))
	}
	return fields
}

// filled 返回所有字段都为 sentinel 的结果
func (e *Extractor) filled(sentinel string) models.StructuredResult {
	result := make(models.StructuredResult, len(e.grammar.Platforms))
	for _, schema := range e.grammar.Platforms {
		fields := make(models.Fields, len(schema.Fields))
		for _, name := range schema.Fields {
			fields[name] = sentinel
		}
		result[schema.Platform] = fields
	}
	return result
}

// 标题前后可能出现的 markdown 修饰
const headerDecoration = "*_#: \t\r"

// stripHeader 去掉段首的标题（只去一次，不区分大小写，容忍 **加粗** 和 # 标记）。
// 标题独占一行时整行去掉。没有标题不算错误。
func stripHeader(text string, labels []string) string {
	body := strings.TrimLeft(text, headerDecoration+"\n")
	for _, label := range labels {
		if label == "" || len(body) < len(label) || !strings.EqualFold(body[:len(label)], label) {
			continue
		}
		rest := body[len(label):]
		// 只匹配完整的词：SECTION 1: INSTAGRAMMER 不算标题
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		line, remainder, found := strings.Cut(rest, "\n")
		if strings.Trim(line, headerDecoration) == "" {
			if !found {
				return ""
			}
			return remainder
		}
		return strings.TrimLeft(rest, headerDecoration)
	}
	return text
}
