package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultCacheName 是未提供配置文件时自动生成的文件系统缓存名称。
const DefaultCacheName = "fs"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空时仅使用默认值，并生成一个默认目录下的文件系统缓存。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DETCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	if path == "" && len(cfg.Caches) == 0 {
		cfg.Caches = map[string]CacheConfig{DefaultCacheName: {Type: CacheTypeFS}}
	}
	for name, cache := range cfg.Caches {
		applyCacheDefaults(name, &cache)
		cfg.Caches[name] = cache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_file_path", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("log_compress", true)
	v.SetDefault("put_policy", "any")
	v.SetDefault("primary", "")
	v.SetDefault("operation_timeout", "0s")
	v.SetDefault("listen_port", 5000)
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "warn"
	}
	g.PutPolicy = strings.ToLower(strings.TrimSpace(g.PutPolicy))
	if g.PutPolicy == "" {
		g.PutPolicy = "any"
	}
	g.Primary = strings.ToLower(strings.TrimSpace(g.Primary))
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
}

func applyCacheDefaults(name string, c *CacheConfig) {
	c.Name = name
	if normalized, ok := NormalizeCacheType(c.Type); ok {
		c.Type = normalized
	}
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.PrefixKey = strings.TrimSpace(c.PrefixKey)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
