// internal/services/history_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/storage"
	"github.com/Corphon/ViralGen/internal/utils"
)

const historyDir = "generations"

// HistoryService 保存成功的生成结果，超出上限时删除最旧的记录
type HistoryService struct {
	store      *storage.FileStorage
	maxEntries int
	logger     *utils.Logger
}

// NewHistoryService 创建历史服务。maxEntries <= 0 表示不限制数量。
func NewHistoryService(store *storage.FileStorage, maxEntries int, logger *utils.Logger) *HistoryService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &HistoryService{store: store, maxEntries: maxEntries, logger: logger}
}

func historyFile(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid generation id %q", id), err)
	}
	return strings.ToLower(id) + ".json", nil
}

// Save 保存一条结果
func (h *HistoryService) Save(result *GenerationResult) error {
	if result == nil {
		return nil
	}
	name, err := historyFile(result.ID)
	if err != nil {
		return err
	}
	if err := h.store.SaveJSON(historyDir, name, result); err != nil {
		return apperrors.WrapError(err, "保存生成记录失败", apperrors.ErrorTypeError)
	}
	h.prune()
	return nil
}

// Get 按 ID 读取
func (h *HistoryService) Get(id string) (*GenerationResult, error) {
	name, err := historyFile(id)
	if err != nil {
		return nil, err
	}
	var result GenerationResult
	if err := h.store.LoadJSON(historyDir, name, &result); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("generation %s not found", id), err)
		}
		return nil, apperrors.WrapError(err, "读取生成记录失败", apperrors.ErrorTypeError)
	}
	return &result, nil
}

// List 最新的在前；limit <= 0 返回全部
func (h *HistoryService) List(limit int) ([]*GenerationResult, error) {
	files, err := h.store.List(historyDir)
	if err != nil {
		return nil, apperrors.WrapError(err, "读取生成记录失败", apperrors.ErrorTypeError)
	}

	results := make([]*GenerationResult, 0, len(files))
	for _, f := range files {
		var r GenerationResult
		if err := h.store.LoadJSON(historyDir, f.Name, &r); err != nil {
			h.logger.Warn("Skipping unreadable history entry", map[string]interface{}{
				"file":  f.Name,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, &r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete 删除一条记录
func (h *HistoryService) Delete(id string) error {
	name, err := historyFile(id)
	if err != nil {
		return err
	}
	if err := h.store.Delete(historyDir, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NewNotFoundError(fmt.Sprintf("generation %s not found", id), err)
		}
		return apperrors.WrapError(err, "删除生成记录失败", apperrors.ErrorTypeError)
	}
	return nil
}

// prune 按文件修改时间删除超出上限的旧记录
func (h *HistoryService) prune() {
	if h.maxEntries <= 0 {
		return
	}
	files, err := h.store.List(historyDir)
	if err != nil || len(files) <= h.maxEntries {
		return
	}
	for _, f := range files[h.maxEntries:] {
		if err := h.store.Delete(historyDir, f.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("Failed to prune history entry", map[string]interface{}{
				"file":  f.Name,
				"error": err.Error(),
			})
		}
	}
}
