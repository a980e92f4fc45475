package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/detcache/detcache/internal/cache"
	"github.com/detcache/detcache/internal/config"
	"github.com/detcache/detcache/internal/logging"
)

// Resolve 将配置中的缓存表转换为按名称排序的 Entry 列表，并补齐文件系统默认目录。
// 调用方应在启动阶段调用一次，之后描述不再变化。
func Resolve(cfg *config.Config) ([]Entry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	entries := make([]Entry, 0, len(cfg.Caches))
	for _, name := range cfg.CacheNames() {
		descriptor, err := describe(cfg.Caches[name])
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Descriptor: descriptor})
	}
	return entries, nil
}

func describe(c config.CacheConfig) (Descriptor, error) {
	kind, ok := config.NormalizeCacheType(c.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported cache type %q", c.Type)
	}

	switch kind {
	case config.CacheTypeFS:
		root := c.CacheDir
		if root == "" {
			dir, err := DefaultCacheDir()
			if err != nil {
				return nil, err
			}
			root = dir
		}
		return FilesystemDescriptor{Root: root}, nil
	case config.CacheTypeS3:
		if c.Bucket == "" || c.Region == "" {
			return nil, errors.New("bucket and region are required")
		}
		return ObjectStoreDescriptor{
			Bucket:       c.Bucket,
			Region:       c.Region,
			Profile:      c.Profile,
			Prefix:       c.PrefixKey,
			Endpoint:     c.Endpoint,
			UsePathStyle: c.UsePathStyle,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type %q", c.Type)
	}
}

// OpenOptions 为 Open 提供共享依赖。
type OpenOptions struct {
	Logger     *logrus.Logger
	HTTPClient *http.Client
}

// Open 依据描述构建具体后端，Descriptor 的每个变体在此处都有对应分支。
func Open(ctx context.Context, entries []Entry, opts OpenOptions) (cache.CacheSet, error) {
	set := make(cache.CacheSet, 0, len(entries))
	for _, entry := range entries {
		store, err := open(ctx, entry.Descriptor, opts)
		if err != nil {
			return nil, fmt.Errorf("open cache %s: %w", entry.Name, err)
		}
		if opts.Logger != nil {
			opts.Logger.WithFields(logging.BackendFields(entry.Name, entry.Descriptor.Kind())).Debug("cache_opened")
		}
		set = append(set, cache.Backend{Name: entry.Name, Store: store})
	}
	return set, nil
}

func open(ctx context.Context, descriptor Descriptor, opts OpenOptions) (cache.Store, error) {
	switch d := descriptor.(type) {
	case FilesystemDescriptor:
		store, err := cache.NewFileStore(d.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	case ObjectStoreDescriptor:
		store, err := cache.NewObjectStore(ctx, cache.ObjectStoreOptions{
			Bucket:       d.Bucket,
			Region:       d.Region,
			Profile:      d.Profile,
			Prefix:       d.Prefix,
			Endpoint:     d.Endpoint,
			UsePathStyle: d.UsePathStyle,
			HTTPClient:   opts.HTTPClient,
			Logger:       opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case nil:
		return nil, errors.New("descriptor is nil")
	default:
		return nil, fmt.Errorf("unsupported descriptor %T", descriptor)
	}
}

// Build 解析配置、打开后端并返回调用方使用的 cache.Cache。
// 配置了 primary 时返回两级缓存，其余后端作为次级扇出集合。
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (cache.Cache, error) {
	entries, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	set, err := Open(ctx, entries, OpenOptions{
		Logger:     logger,
		HTTPClient: NewObjectStoreHTTPClient(cfg),
	})
	if err != nil {
		return nil, err
	}

	policy, err := cache.ParsePutPolicy(cfg.Global.PutPolicy)
	if err != nil {
		return nil, err
	}
	routerOpts := cache.RouterOptions{
		Logger:           logger,
		PutPolicy:        policy,
		OperationTimeout: cfg.Global.OperationTimeout.DurationValue(),
	}

	if !cfg.Tiered() {
		router, err := cache.NewRouter(set, routerOpts)
		if err != nil {
			return nil, err
		}
		return router, nil
	}

	var (
		primary     cache.Backend
		secondaries cache.CacheSet
		found       bool
	)
	for _, b := range set {
		if b.Name == cfg.Global.Primary {
			primary = b
			found = true
			continue
		}
		secondaries = append(secondaries, b)
	}
	if !found {
		return nil, fmt.Errorf("primary cache %s is not configured", cfg.Global.Primary)
	}

	secondary, err := cache.NewRouter(secondaries, routerOpts)
	if err != nil {
		return nil, err
	}
	tiered, err := cache.NewTiered(primary, secondary, logger)
	if err != nil {
		return nil, err
	}
	return tiered, nil
}
