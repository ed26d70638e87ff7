// internal/models/result.go
package models

// Platform 输出分组（平台槽位）
type Platform string

const (
	PlatformInstagram     Platform = "instagram"
	PlatformYouTubeShorts Platform = "youtube_shorts"
	PlatformXTwitter      Platform = "x_twitter"
)

// 占位值：无法恢复真实内容时填入
const (
	SentinelNoData      = "No Data"
	SentinelSeeOtherTab = "See Other Tab"
	SentinelError       = "Error"
)

// IsSentinel 判断值是否为占位值
func IsSentinel(value string) bool {
	switch value {
	case SentinelNoData, SentinelSeeOtherTab, SentinelError:
		return true
	}
	return false
}

// Fields 字段名 -> 内容
type Fields map[string]string

// StructuredResult 平台 -> 字段。每个平台的字段键总是完整存在。
type StructuredResult map[Platform]Fields

// Get 读取字段，缺失时返回 No Data
func (r StructuredResult) Get(platform Platform, field string) string {
	fields, ok := r[platform]
	if !ok {
		return SentinelNoData
	}
	value, ok := fields[field]
	if !ok {
		return SentinelNoData
	}
	return value
}

// Clone 深拷贝
func (r StructuredResult) Clone() StructuredResult {
	out := make(StructuredResult, len(r))
	for platform, fields := range r {
		copied := make(Fields, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		out[platform] = copied
	}
	return out
}

// ExtractionReport 解析过程的报告，降级逐字段可见
type ExtractionReport struct {
	OuterDelimiterFound bool     `json:"outer_delimiter_found"`
	SegmentCount        int      `json:"segment_count"`
	SentinelFields      []string `json:"sentinel_fields,omitempty"` // "platform.field"
	Recovered           bool     `json:"recovered"`                 // 解析中发生异常并已回退
	Failure             string   `json:"failure,omitempty"`
}

// Degraded 是否有字段使用了占位值
func (r ExtractionReport) Degraded() bool {
	return r.Recovered || len(r.SentinelFields) > 0
}
