package paths

import (
	"os"
	"path/filepath"
)

const appName = "stockdesk"

// GetDataDir 获取应用数据目录
func GetDataDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil || userConfigDir == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(userConfigDir, appName)
}

// ConversationsFile 会话持久化文件
func ConversationsFile(dataDir string) string {
	return filepath.Join(dataDir, "conversations.json")
}

// SettingsFile 设置持久化文件
func SettingsFile(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

// LogFile 日志文件
func LogFile(dataDir string) string {
	return filepath.Join(dataDir, "logs", appName+".log")
}

// GetCacheDir 获取缓存目录
func GetCacheDir(dataDir string) string {
	return filepath.Join(dataDir, "cache")
}

// EnsureCacheDir 确保缓存目录存在并返回路径
func EnsureCacheDir(dataDir, subDir string) string {
	dir := filepath.Join(GetCacheDir(dataDir), subDir)
	os.MkdirAll(dir, 0755)
	return dir
}
