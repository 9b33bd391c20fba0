package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// ParseLevel 解析日志级别字符串，无法识别时返回 INFO
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

var (
	mu          sync.RWMutex
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base        = zap.NewNop()
	logFile     *os.File
)

// Init 将日志输出到文件，终端由界面占用
func Init(path string, level Level) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	atomicLevel.SetLevel(level.zapLevel())
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), atomicLevel)

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	base = zap.New(core)
	return nil
}

// UseZap 替换底层 zap 实例，测试中用于捕获日志
func UseZap(z *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = z
}

// Sync 刷新缓冲并关闭日志文件
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	base = zap.NewNop()
}

// SetGlobalLevel 设置全局日志级别
func SetGlobalLevel(level Level) {
	atomicLevel.SetLevel(level.zapLevel())
}

// Logger 日志记录器
type Logger struct {
	module string
}

// New 创建新的日志记录器
func New(module string) *Logger {
	return &Logger{module: module}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(l.module).Sugar()
}

// Debug 调试日志
func (l *Logger) Debug(format string, args ...any) {
	l.sugar().Debugf(format, args...)
}

// Info 信息日志
func (l *Logger) Info(format string, args ...any) {
	l.sugar().Infof(format, args...)
}

// Warn 警告日志
func (l *Logger) Warn(format string, args ...any) {
	l.sugar().Warnf(format, args...)
}

// Error 错误日志
func (l *Logger) Error(format string, args ...any) {
	l.sugar().Errorf(format, args...)
}
