package registry

import (
	"errors"
	"os"
	"path/filepath"
)

// Descriptor 是后端描述的封闭集合，只有本包内的两种类型实现它。
type Descriptor interface {
	// Kind 返回 fs 或 s3。
	Kind() string
	sealed()
}

// FilesystemDescriptor 描述本地文件系统后端。
type FilesystemDescriptor struct {
	Root string
}

func (FilesystemDescriptor) Kind() string { return "fs" }
func (FilesystemDescriptor) sealed()      {}

// ObjectStoreDescriptor 描述 S3 兼容对象存储后端。
type ObjectStoreDescriptor struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	Endpoint     string
	UsePathStyle bool
}

func (ObjectStoreDescriptor) Kind() string { return "s3" }
func (ObjectStoreDescriptor) sealed()      {}

// Entry 将唯一名称与描述绑定。
type Entry struct {
	Name       string
	Descriptor Descriptor
}

// DefaultCacheDir 返回 $XDG_CACHE_HOME，未设置时回退到 $HOME/.cache。
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("HOME environment variable not set")
	}
	return filepath.Join(home, ".cache"), nil
}
