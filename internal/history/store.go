// Package history 会话与设置的 JSON 文件持久化
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"
)

var log = logger.New("History")

// ConversationStore 会话存储，读写失败只记录日志
type ConversationStore struct {
	path string
	mu   sync.Mutex
}

// NewConversationStore 创建会话存储
func NewConversationStore(path string) *ConversationStore {
	return &ConversationStore{path: path}
}

// Path 存储文件路径
func (s *ConversationStore) Path() string {
	return s.path
}

// Load 读取会话，文件缺失或损坏时返回空映射
func (s *ConversationStore) Load() models.Conversations {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := make(models.Conversations)
	if err := readJSON(s.path, &convs); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("load conversations from %s: %v", s.path, err)
		}
		return make(models.Conversations)
	}

	// 空值条目按缺失处理
	for sym, c := range convs {
		if c == nil {
			delete(convs, sym)
		}
	}
	return convs
}

// Save 写入会话
func (s *ConversationStore) Save(convs models.Conversations) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.Conversation, len(convs))
	for sym, c := range convs {
		if c == nil {
			continue
		}
		out[sym] = models.Conversation{
			Messages:           c.Messages,
			StockData:          c.StockData,
			CompetitorAnalysis: c.CompetitorAnalysis,
		}
	}
	if err := writeJSON(s.path, out); err != nil {
		log.Error("save conversations to %s: %v", s.path, err)
	}
}

// Clear 删除存储文件
func (s *ConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("remove %s: %v", s.path, err)
	}
}

// SettingsStore 设置存储
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore 创建设置存储
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Load 读取设置，缺失字段取默认值
func (s *SettingsStore) Load() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := models.DefaultSettings()
	if err := readJSON(s.path, &settings); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("load settings from %s: %v", s.path, err)
		}
		return models.DefaultSettings()
	}
	return settings
}

// Save 写入设置
func (s *SettingsStore) Save(settings models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path, settings); err != nil {
		log.Error("save settings to %s: %v", s.path, err)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON 先写临时文件再重命名，避免留下半截文件
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
