// internal/models/request.go
package models

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
)

// 输入校验失败的原因，包装在 validation 错误中
var (
	ErrTopicMissing    = errors.New("topic is required")
	ErrInvalidCategory = errors.New("unknown category")
	ErrInvalidVibe     = errors.New("unknown vibe")
)

// invalid 生成消息与原因一致的校验错误
func invalid(reason error, label string) error {
	err := fmt.Errorf("%w %q", reason, label)
	return apperrors.NewValidationError(err.Error(), err)
}

// Category 内容分类（封闭集合）
type Category string

const (
	CategoryTech      Category = "Tech"
	CategoryComedy    Category = "Comedy"
	CategoryEducation Category = "Education"
	CategoryFitness   Category = "Fitness"
	CategoryBusiness  Category = "Business"
	CategoryLifestyle Category = "Lifestyle"
	CategoryGaming    Category = "Gaming"
	CategoryFood      Category = "Food"
)

// Categories 按表单显示顺序返回全部分类
func Categories() []Category {
	return []Category{
		CategoryTech,
		CategoryComedy,
		CategoryEducation,
		CategoryFitness,
		CategoryBusiness,
		CategoryLifestyle,
		CategoryGaming,
		CategoryFood,
	}
}

// Vibe 内容调性（封闭集合）
type Vibe string

const (
	VibeHighEnergy    Vibe = "High Energy"
	VibeAesthetic     Vibe = "Aesthetic/Calm"
	VibeControversial Vibe = "Controversial"
	VibeFunny         Vibe = "Funny"
	VibeEducational   Vibe = "Educational"
	VibeStorytime     Vibe = "Storytime"
)

// Vibes 按表单显示顺序返回全部调性
func Vibes() []Vibe {
	return []Vibe{
		VibeHighEnergy,
		VibeAesthetic,
		VibeControversial,
		VibeFunny,
		VibeEducational,
		VibeStorytime,
	}
}

// ParseCategory 解析分类标签，大小写不敏感
func ParseCategory(label string) (Category, error) {
	label = strings.TrimSpace(label)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), label) {
			return c, nil
		}
	}
	return "", invalid(ErrInvalidCategory, label)
}

// ParseVibe 解析调性标签，大小写不敏感
func ParseVibe(label string) (Vibe, error) {
	label = strings.TrimSpace(label)
	for _, v := range Vibes() {
		if strings.EqualFold(string(v), label) {
			return v, nil
		}
	}
	return "", invalid(ErrInvalidVibe, label)
}

// GenerationRequest 一次表单提交。构造后不可修改。
type GenerationRequest struct {
	topic    string
	category Category
	vibe     Vibe
}

// NewGenerationRequest 校验并创建生成请求
func NewGenerationRequest(topic, category, vibe string) (GenerationRequest, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return GenerationRequest{}, apperrors.NewValidationError(ErrTopicMissing.Error(), ErrTopicMissing)
	}

	c, err := ParseCategory(category)
	if err != nil {
		return GenerationRequest{}, err
	}

	v, err := ParseVibe(vibe)
	if err != nil {
		return GenerationRequest{}, err
	}

	return GenerationRequest{topic: topic, category: c, vibe: v}, nil
}

func (r GenerationRequest) Topic() string      { return r.topic }
func (r GenerationRequest) Category() Category { return r.category }
func (r GenerationRequest) Vibe() Vibe         { return r.vibe }

// GenerationForm 表单/API 入参
type GenerationForm struct {
	Topic    string `json:"topic"`
	Category string `json:"category"`
	Vibe     string `json:"vibe"`
}

// ToRequest 转换为已校验的生成请求
func (f GenerationForm) ToRequest() (GenerationRequest, error) {
	return NewGenerationRequest(f.Topic, f.Category, f.Vibe)
}
