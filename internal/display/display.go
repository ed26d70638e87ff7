// internal/display/display.go
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/protocol"
)

// Field 一个可复制的文本块
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	Placeholder bool   `json:"placeholder"`
}

// Group 一个平台分组，顺序与语法声明一致
type Group struct {
	Platform models.Platform `json:"platform"`
	Title    string          `json:"title"`
	Fields   []Field         `json:"fields"`
}

// Groups 按语法顺序把结构化结果整理成展示分组
func Groups(g protocol.Grammar, result models.StructuredResult) []Group {
	groups := make([]Group, 0, len(g.Platforms))
	for _, schema := range g.Platforms {
		group := Group{Platform: schema.Platform, Title: schema.DisplayName}
		for _, name := range schema.Fields {
			value := result.Get(schema.Platform, name)
			group.Fields = append(group.Fields, Field{
				Name:        name,
				Label:       label(name),
				Value:       value,
				Placeholder: models.IsSentinel(value),
			})
		}
		groups = append(groups, group)
	}
	return groups
}

func label(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Renderer 终端渲染
type Renderer struct {
	title       lipgloss.Style
	label       lipgloss.Style
	block       lipgloss.Style
	placeholder lipgloss.Style
	warning     lipgloss.Style
	failure     lipgloss.Style
}

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6c7a89")
	warningTone = lipgloss.Color("#FFC107")
	errorTone   = lipgloss.Color("#e53935")
)

// NewRenderer 根据输出终端的能力创建渲染器，非终端输出时不带颜色
func NewRenderer(w io.Writer) *Renderer {
	lr := lipgloss.NewRenderer(w)
	return &Renderer{
		title:       lr.NewStyle().Bold(true).Foreground(accent).MarginTop(1),
		label:       lr.NewStyle().Bold(true),
		block:       lr.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		placeholder: lr.NewStyle().Italic(true).Foreground(muted),
		warning:     lr.NewStyle().Foreground(warningTone),
		failure:     lr.NewStyle().Bold(true).Foreground(errorTone),
	}
}

// Render 渲染全部分组
func (r *Renderer) Render(groups []Group) string {
	var b strings.Builder
	for _, group := range groups {
		b.WriteString(r.title.Render(group.Title))
		b.WriteString("\n")
		for _, field := range group.Fields {
			b.WriteString(r.label.Render(field.Label))
			b.WriteString("\n")
			value := field.Value
			if field.Placeholder {
				value = r.placeholder.Render(value)
			}
			b.WriteString(r.block.Render(value))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderReport 有占位字段时给出提示，否则返回空串
func (r *Renderer) RenderReport(report models.ExtractionReport) string {
	if !report.Degraded() {
		return ""
	}
	if report.Recovered {
		return r.warning.Render(fmt.Sprintf("output could not be parsed (%s); every field shows %q", report.Failure, models.SentinelError))
	}
	msg := fmt.Sprintf("output did not fully follow the format; placeholder fields: %s", strings.Join(report.SentinelFields, ", "))
	if !report.OuterDelimiterFound {
		msg = "no section delimiter found; everything was placed in the first group. " + msg
	}
	return r.warning.Render(msg)
}

// RenderError 渲染错误信息，原文展示
func (r *Renderer) RenderError(err error) string {
	return r.failure.Render("Error: " + err.Error())
}
