package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL 默认缓存有效期
const DefaultCacheTTL = 5 * time.Minute

// MemoryCache 进程内 TTL 缓存
type MemoryCache[V any] struct {
	cache *gocache.Cache
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache[V any](ttl time.Duration) *MemoryCache[V] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cleanup := 2 * ttl
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &MemoryCache[V]{cache: gocache.New(ttl, cleanup)}
}

// Get 读取缓存
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	var zero V
	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		log.Error("wrong cached type for key %s", key)
		return zero, false
	}
	return v, true
}

// Set 写入缓存，使用默认有效期
func (c *MemoryCache[V]) Set(key string, value V) {
	c.cache.SetDefault(key, value)
}

// Delete 删除缓存
func (c *MemoryCache[V]) Delete(key string) {
	c.cache.Delete(key)
}

// Flush 清空缓存
func (c *MemoryCache[V]) Flush() {
	c.cache.Flush()
}

// cacheEntry 文件缓存条目
type cacheEntry[V any] struct {
	Data      V         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileCache 文件缓存，网络不可用时作为兜底
type FileCache[V any] struct {
	cacheDir string
	mu       sync.RWMutex
}

// NewFileCache 创建文件缓存
func NewFileCache[V any](cacheDir string) (*FileCache[V], error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	return &FileCache[V]{cacheDir: cacheDir}, nil
}

func (c *FileCache[V]) cacheFilePath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(c.cacheDir, safe+".json")
}

// Get 读取缓存；maxAge 为 0 时不检查过期
func (c *FileCache[V]) Get(key string, maxAge time.Duration) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	data, err := os.ReadFile(c.cacheFilePath(key))
	if err != nil {
		return zero, time.Time{}, false
	}

	var entry cacheEntry[V]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, time.Time{}, false
	}

	if maxAge > 0 && time.Since(entry.UpdatedAt) > maxAge {
		return zero, entry.UpdatedAt, false
	}
	return entry.Data, entry.UpdatedAt, true
}

// Set 写入缓存
func (c *FileCache[V]) Set(key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cacheEntry[V]{Data: value, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return os.WriteFile(c.cacheFilePath(key), data, 0644)
}
