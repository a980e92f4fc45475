package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// renameFile 可在测试中替换，用于模拟写入完成但 rename 前中断的场景。
var renameFile = os.Rename

// NewFileStore 以 root 为根目录构建文件系统后端。目录在首次 Put 时按需创建。
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	return &FileStore{
		root:  abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// FileStore 通过 entryLock 串行化进程内对同一 hash 的写入，跨进程依赖 rename 的原子性。
type FileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Root 返回解析后的绝对根目录。
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Kind() string {
	return "fs"
}

// Path 返回 hash 在本后端上的绝对文件路径。
func (s *FileStore) Path(hash string) string {
	return FilePath(s.root, hash)
}

func (s *FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath := s.Path(hash)
	value, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		if info, statErr := os.Stat(filePath); statErr == nil && info.IsDir() {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	return value, nil
}

// Put 依次执行 创建目录 → 写临时文件 → fsync → rename，任一步失败都会返回带步骤名的错误。
func (s *FileStore) Put(ctx context.Context, hash string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockEntry(hash)
	defer unlock()

	filePath := s.Path(hash)
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempName := filePath + ".tmp-" + uuid.NewString()
	tempFile, err := os.OpenFile(tempName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tempName, err)
	}

	if _, err := tempFile.Write(value); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("write temp file %s: %w", tempName, err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("sync temp file %s: %w", tempName, err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("close temp file %s: %w", tempName, err)
	}

	if err := renameFile(tempName, filePath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("rename temp file to %s: %w", filePath, err)
	}
	return nil
}

func (s *FileStore) lockEntry(hash string) func() {
	s.mu.Lock()
	lock := s.locks[hash]
	if lock == nil {
		lock = &entryLock{}
		s.locks[hash] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, hash)
		}
		s.mu.Unlock()
	}
}
