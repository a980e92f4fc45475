package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/detcache/detcache/internal/config"
)

// consoleOutput 是未配置日志文件时的输出目标；stdout 留给缓存值本身。
var consoleOutput io.Writer = os.Stderr

// InitLogger 根据全局配置初始化 JSON 结构化日志，verbosity 为 -v 次数减去 -q 次数。
func InitLogger(cfg config.GlobalConfig, verbosity int) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}
	level = AdjustLevel(level, verbosity)

	output, outErr := buildOutput(cfg)
	if outErr != nil {
		fmt.Fprintf(consoleOutput, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

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

// AdjustLevel 按 delta 提高（正数）或降低（负数）日志级别，结果被限制在 panic..trace 之间。
func AdjustLevel(level logrus.Level, delta int) logrus.Level {
	adjusted := int(level) + delta
	if adjusted < int(logrus.PanicLevel) {
		adjusted = int(logrus.PanicLevel)
	}
	if adjusted > int(logrus.TraceLevel) {
		adjusted = int(logrus.TraceLevel)
	}
	return logrus.Level(adjusted)
}

// buildOutput 根据配置创建日志输出 Writer；失败时降级到 stderr 并返回错误。
func buildOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return consoleOutput, nil
	}

	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return consoleOutput, fmt.Errorf("创建日志目录失败: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}
	return rotator, nil
}
