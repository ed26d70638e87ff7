// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileStorage 以 JSON 文件保存记录，写入原子化，读取带小型缓存
type FileStorage struct {
	BaseDir string

	fileLocks sync.Map // path -> *sync.RWMutex

	cache        map[string]*cacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// FileInfo 列表项
type FileInfo struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// NewFileStorage 创建文件存储，并启动缓存清理
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("存储目录为空")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*cacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
		stop:         make(chan struct{}),
	}
	go fs.cacheCleanupLoop(2 * time.Minute)
	return fs, nil
}

// Close 停止后台清理
func (fs *FileStorage) Close() {
	fs.stopOnce.Do(func() { close(fs.stop) })
}

func (fs *FileStorage) lockFor(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// path 拼接路径，拒绝跳出 BaseDir 的文件名
func (fs *FileStorage) path(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("非法文件名: %q", name)
	}
	return filepath.Join(fs.BaseDir, dir, name), nil
}

// SaveJSON 序列化并原子写入 dir/name
func (fs *FileStorage) SaveJSON(dir, name string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	fullPath, err := fs.path(dir, name)
	if err != nil {
		return err
	}

	lock := fs.lockFor(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}

	fs.invalidate(fullPath)
	return nil
}

// LoadJSON 读取 dir/name 并解析到 v
func (fs *FileStorage) LoadJSON(dir, name string, v interface{}) error {
	fullPath, err := fs.path(dir, name)
	if err != nil {
		return err
	}

	content, ok := fs.cached(fullPath)
	if !ok {
		if content, err = fs.read(fullPath); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}
	return nil
}

// read 读取文件并写入缓存。缓存在持有文件锁时写入，
// 保证不会与 SaveJSON/Delete 的失效操作交错。
func (fs *FileStorage) read(fullPath string) ([]byte, error) {
	lock := fs.lockFor(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	fs.remember(fullPath, content)
	return content, nil
}

// Delete 删除 dir/name
func (fs *FileStorage) Delete(dir, name string) error {
	fullPath, err := fs.path(dir, name)
	if err != nil {
		return err
	}

	lock := fs.lockFor(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("删除文件失败: %w", err)
	}
	fs.invalidate(fullPath)
	return nil
}

// List 列出目录下的 .json 文件，最新的在前。目录不存在时返回空列表。
func (fs *FileStorage) List(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: entry.Name(), ModTime: info.ModTime(), Size: info.Size()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

func (fs *FileStorage) cached(path string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()
	entry, ok := fs.cache[path]
	if !ok || time.Since(entry.timestamp) >= fs.cacheExpiry {
		return nil, false
	}
	return entry.data, true
}

func (fs *FileStorage) remember(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &cacheEntry{data: data, timestamp: time.Now()}
	if len(fs.cache) > fs.maxCacheSize {
		fs.evictOldestLocked(len(fs.cache) - fs.maxCacheSize)
	}
}

func (fs *FileStorage) invalidate(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()
	delete(fs.cache, path)
}

func (fs *FileStorage) cacheCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.stop:
			return
		case <-ticker.C:
			fs.cleanupExpired()
		}
	}
}

func (fs *FileStorage) cleanupExpired() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
		}
	}
}

// evictOldestLocked 调用方持有 cacheMutex
func (fs *FileStorage) evictOldestLocked(n int) {
	type aged struct {
		key string
		ts  time.Time
	}
	entries := make([]aged, 0, len(fs.cache))
	for key, entry := range fs.cache {
		entries = append(entries, aged{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })

	for i := 0; i < n && i < len(entries); i++ {
		delete(fs.cache, entries[i].key)
	}
}
