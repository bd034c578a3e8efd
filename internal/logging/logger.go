package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/any-hub/artifact-hub/internal/config"
)

// 未配置滚动参数时使用的默认值（MB / 份数）。
const (
	defaultMaxSize    = 100
	defaultMaxBackups = 10
)

// InitLogger 根据全局配置初始化 JSON 结构化日志，确保文件/控制台输出一致。
// 日志目录不可写时降级到 stdout，并记录一条 logger_fallback。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	output, outErr := buildOutput(cfg)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	// 第三方库经由全局 logrus 输出时保持同一格式。
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// ApplyLevel 在配置热加载后调整日志级别，输出目标在进程生命周期内不变。
func ApplyLevel(logger *logrus.Logger, raw string) error {
	level, err := parseLevel(raw)
	if err != nil {
		return err
	}
	if logger.GetLevel() == level {
		return nil
	}
	logger.SetLevel(level)
	logrus.SetLevel(level)
	return nil
}

func parseLevel(raw string) (logrus.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("无法解析日志级别: %w", err)
	}
	return level, nil
}

// buildOutput 根据配置创建日志输出 Writer；失败时降级到 stdout 并返回错误。
func buildOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	maxSize, maxBackups := cfg.LogMaxSize, cfg.LogMaxBackups
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}
