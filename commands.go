package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/detcache/detcache/internal/cache"
	"github.com/detcache/detcache/internal/logging"
)

// handleGet 查询缓存：命中返回 0 并输出值，未命中返回 1，缓存故障返回 2。
func handleGet(ctx context.Context, c cache.Cache, logger *logrus.Logger, opts cliOptions) int {
	fields := logging.CommandFields("get", opts.key)

	res, err := c.Get(ctx, opts.key)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidHash) {
			return exitInvalidKey
		}
		logger.WithFields(fields).WithError(err).Error("cache_get_failed")
		printOutput(opts.jsonOutput, opts.key, nil)
		return exitCacheError
	}

	if !res.Found {
		fields["outcomes"] = outcomeSummary(res.Outcomes)
		logger.WithFields(fields).Info("value not found")
		printOutput(opts.jsonOutput, opts.key, nil)
		return exitNotFound
	}

	fields["backend"] = res.Backend
	fields["promoted"] = res.Promoted
	logger.WithFields(fields).Info("value retrieved")
	printOutput(opts.jsonOutput, opts.key, res.Value)
	return exitSuccess
}

// handlePut 从 stdin 读取完整的值后写入缓存，所有后端都失败时返回 1。
func handlePut(ctx context.Context, c cache.Cache, logger *logrus.Logger, opts cliOptions) int {
	fields := logging.CommandFields("put", opts.key)

	value, err := io.ReadAll(stdIn)
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("read stdin failed")
		return exitCacheError
	}
	fields["value_length"] = len(value)

	res, err := c.Put(ctx, opts.key, value)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidHash) {
			return exitInvalidKey
		}
		logger.WithFields(fields).WithError(err).Error("cache_put_failed")
		printOutput(opts.jsonOutput, opts.key, nil)
		return exitPutFailed
	}

	if res.Warning != nil {
		logger.WithFields(fields).WithError(res.Warning).Warn("value stored with failures")
	} else {
		logger.WithFields(fields).Info("value stored")
	}
	if opts.jsonOutput {
		printOutput(true, opts.key, nil)
	}
	return exitSuccess
}

// jsonPayload 是 --json 模式的输出格式。非 UTF-8 的值改用 value_base64，
// 避免 encoding/json 把非法字节替换为 U+FFFD。
type jsonPayload struct {
	Key         string  `json:"key"`
	Value       *string `json:"value,omitempty"`
	ValueBase64 string  `json:"value_base64,omitempty"`
}

// printOutput 在 JSON 模式下输出一行 JSON，否则原样写出值本身。
func printOutput(jsonFormat bool, key string, value []byte) {
	if jsonFormat {
		payload := jsonPayload{Key: key}
		switch {
		case value == nil:
		case utf8.Valid(value):
			text := string(value)
			payload.Value = &text
		default:
			payload.ValueBase64 = base64.StdEncoding.EncodeToString(value)
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(stdErr, "encode output: %v\n", err)
			return
		}
		fmt.Fprintln(stdOut, string(encoded))
		return
	}
	if value != nil {
		_, _ = stdOut.Write(value)
	}
}

func outcomeSummary(outcomes []cache.Outcome) []string {
	result := make([]string, len(outcomes))
	for i, o := range outcomes {
		result[i] = fmt.Sprintf("%s:%s", o.Backend, o.Status)
	}
	return result
}
