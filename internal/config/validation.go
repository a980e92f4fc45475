package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入缓存路由。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("log_level", "无法识别的日志级别 "+g.LogLevel)
	}
	switch g.PutPolicy {
	case "any", "all":
	default:
		return newFieldError("put_policy", "仅支持 any/all")
	}
	if g.OperationTimeout.DurationValue() < 0 {
		return newFieldError("operation_timeout", "不能为负数")
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("listen_port", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("log_max_size/log_max_backups", "不能为负数")
	}

	for _, name := range c.CacheNames() {
		if err := validateCache(name, c.Caches[name]); err != nil {
			return err
		}
	}

	if g.Primary != "" {
		if _, ok := c.Caches[g.Primary]; !ok {
			return newFieldError("primary", fmt.Sprintf("未定义的缓存: %s", g.Primary))
		}
	}

	return nil
}

func validateCache(name string, cache CacheConfig) error {
	if name == "" {
		return newFieldError("caches", "缓存名称不能为空")
	}
	if cache.Type == "" {
		return newFieldError(cacheField(name, "type"), "不能为空")
	}

	switch cache.Type {
	case CacheTypeFS:
		return nil
	case CacheTypeS3:
		if cache.Bucket == "" {
			return newFieldError(cacheField(name, "bucket"), "不能为空")
		}
		if cache.Region == "" {
			return newFieldError(cacheField(name, "region"), "不能为空")
		}
		if cache.Endpoint != "" {
			if err := validateEndpoint(cache.Endpoint); err != nil {
				return fmt.Errorf("%s: %w", cacheField(name, "endpoint"), err)
			}
		}
		return nil
	default:
		return newFieldError(cacheField(name, "type"), "仅支持 fs|filesystem|s3|object-store，得到 "+cache.Type)
	}
}

func validateEndpoint(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
