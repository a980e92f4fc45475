package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Duration 是配置中的时长字段，接受 Go Duration 字符串（"15s"）或以秒计的数字。
type Duration time.Duration

// UnmarshalText 是字符串形式时长的唯一解析入口，decode hook 也经由此处。
// 纯数字（十进制、0x 十六进制或小数）按秒解释。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		base = 0
	}
	if seconds, err := strconv.ParseInt(raw, base, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("无法解析 Duration 字段: %s", raw)
}

// DurationValue 返回对应的 time.Duration。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

const (
	// CacheTypeFS 表示本地文件系统后端，配置中也可写作 filesystem。
	CacheTypeFS = "fs"
	// CacheTypeS3 表示 S3 兼容对象存储后端，配置中也可写作 object-store。
	CacheTypeS3 = "s3"
)

// NormalizeCacheType 将配置中的 type 字段（含别名）归一化为 fs / s3。
func NormalizeCacheType(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fs", "filesystem":
		return CacheTypeFS, true
	case "s3", "object-store":
		return CacheTypeS3, true
	default:
		return "", false
	}
}

// GlobalConfig 描述全局运行时行为，所有缓存后端共享同一份参数。
type GlobalConfig struct {
	LogLevel         string   `mapstructure:"log_level"`
	LogFilePath      string   `mapstructure:"log_file_path"`
	LogMaxSize       int      `mapstructure:"log_max_size"`
	LogMaxBackups    int      `mapstructure:"log_max_backups"`
	LogCompress      bool     `mapstructure:"log_compress"`
	PutPolicy        string   `mapstructure:"put_policy"`
	Primary          string   `mapstructure:"primary"`
	OperationTimeout Duration `mapstructure:"operation_timeout"`
	ListenPort       int      `mapstructure:"listen_port"`
}

// CacheConfig 对应 [caches.<name>] 表，字段按 type 区分含义。
type CacheConfig struct {
	// Name 来自表名，不参与反序列化。
	Name string `mapstructure:"-"`
	Type string `mapstructure:"type"`

	// fs
	CacheDir string `mapstructure:"cache_dir"`

	// s3
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Profile      string `mapstructure:"profile"`
	PrefixKey    string `mapstructure:"prefix_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig           `mapstructure:",squash"`
	Caches map[string]CacheConfig `mapstructure:"caches"`
}

// CacheNames 返回按名称排序的缓存列表，保证日志与诊断输出稳定。
func (c *Config) CacheNames() []string {
	names := make([]string, 0, len(c.Caches))
	for name := range c.Caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheSummary 返回 name:type 形式的摘要，供启动日志使用。
func (c *Config) CacheSummary() []string {
	names := c.CacheNames()
	if len(names) == 0 {
		return nil
	}
	result := make([]string, len(names))
	for i, name := range names {
		result[i] = fmt.Sprintf("%s:%s", name, c.Caches[name].Type)
	}
	return result
}

// Tiered 表示是否配置了主后端（两级缓存拓扑）。
func (c *Config) Tiered() bool {
	return strings.TrimSpace(c.Global.Primary) != ""
}
