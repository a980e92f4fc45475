package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/detcache/detcache/internal/cache"
	"github.com/detcache/detcache/internal/config"
)

const testHash = "b5bb9d8014a0f9b1d61e21e796d78dccdf1352f23cd32812f4850b878ae4944c"

func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
}

func TestResolveSortsAndDefaultsRoot(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	cfg := &config.Config{
		Caches: map[string]config.CacheConfig{
			"zeta": {Name: "zeta", Type: config.CacheTypeS3, Bucket: "b", Region: "r", PrefixKey: "p"},
			"alpha": {Name: "alpha", Type: config.CacheTypeFS},
		},
	}

	entries, err := Resolve(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "alpha", entries[0].Name)
	require.Equal(t, FilesystemDescriptor{Root: xdg}, entries[0].Descriptor)
	require.Equal(t, "zeta", entries[1].Name)
	require.Equal(t, ObjectStoreDescriptor{Bucket: "b", Region: "r", Prefix: "p"}, entries[1].Descriptor)
}

func TestDefaultCacheDirFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", home)

	dir, err := DefaultCacheDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".cache"), dir)

	t.Setenv("HOME", "")
	_, err = DefaultCacheDir()
	require.Error(t, err)
}

func TestResolveRejectsUnknownType(t *testing.T) {
	cfg := &config.Config{Caches: map[string]config.CacheConfig{"x": {Name: "x", Type: "redis"}}}
	_, err := Resolve(cfg)
	require.Error(t, err)
}

func TestOpenBuildsEveryDescriptorKind(t *testing.T) {
	isolateAWS(t)
	root := t.TempDir()

	set, err := Open(context.Background(), []Entry{
		{Name: "local", Descriptor: FilesystemDescriptor{Root: root}},
		{Name: "remote", Descriptor: ObjectStoreDescriptor{Bucket: "bucket", Region: "us-east-1"}},
	}, OpenOptions{Logger: logrus.New()})
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.IsType(t, &cache.FileStore{}, set[0].Store)
	require.IsType(t, &cache.ObjectStore{}, set[1].Store)
	require.Equal(t, []string{"local", "remote"}, set.Names())
}

func TestOpenRejectsNilDescriptor(t *testing.T) {
	_, err := Open(context.Background(), []Entry{{Name: "broken"}}, OpenOptions{})
	require.Error(t, err)
}

func TestBuildFlatRouterRoundTrip(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{PutPolicy: "any"},
		Caches: map[string]config.CacheConfig{
			"a": {Name: "a", Type: config.CacheTypeFS, CacheDir: t.TempDir()},
			"b": {Name: "b", Type: config.CacheTypeFS, CacheDir: t.TempDir()},
		},
	}

	c, err := Build(context.Background(), cfg, logrus.New())
	require.NoError(t, err)
	require.IsType(t, &cache.Router{}, c)

	ctx := context.Background()
	_, err = c.Put(ctx, testHash, []byte("value"))
	require.NoError(t, err)

	res, err := c.Get(ctx, testHash)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, []byte("value"), res.Value)
}

func TestBuildTieredTopology(t *testing.T) {
	primaryDir := t.TempDir()
	secondaryDir := t.TempDir()
	cfg := &config.Config{
		Global: config.GlobalConfig{PutPolicy: "any", Primary: "fast"},
		Caches: map[string]config.CacheConfig{
			"fast": {Name: "fast", Type: config.CacheTypeFS, CacheDir: primaryDir},
			"slow": {Name: "slow", Type: config.CacheTypeFS, CacheDir: secondaryDir},
		},
	}

	c, err := Build(context.Background(), cfg, logrus.New())
	require.NoError(t, err)
	tiered, ok := c.(*cache.Tiered)
	require.True(t, ok, "expected tiered cache, got %T", c)
	require.Equal(t, []string{"fast", "slow"}, tiered.Backends().Names())

	slow, err := cache.NewFileStore(secondaryDir)
	require.NoError(t, err)
	require.NoError(t, slow.Put(context.Background(), testHash, []byte("slow value")))

	res, err := c.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.True(t, res.Promoted)

	fast, err := cache.NewFileStore(primaryDir)
	require.NoError(t, err)
	got, err := fast.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.Equal(t, []byte("slow value"), got)
}

func TestNewObjectStoreHTTPClientTimeout(t *testing.T) {
	client := NewObjectStoreHTTPClient(nil)
	require.Zero(t, client.Timeout)

	cfg := &config.Config{Global: config.GlobalConfig{OperationTimeout: config.Duration(5e9)}}
	client = NewObjectStoreHTTPClient(cfg)
	require.Equal(t, int64(5e9), int64(client.Timeout))
}
