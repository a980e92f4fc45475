package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	testHash  = "b5bb9d8014a0f9b1d61e21e796d78dccdf1352f23cd32812f4850b878ae4944c"
	otherHash = "7d865e959b2466918c9863afca942d0fb89d7c9ac0c99bafc3749504ded97730"
)

var errBackendDown = errors.New("backend down")

// memoryStore 是测试用的内存后端，可配置故障与延迟。
type memoryStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	getErr  error
	putErr  error
	delay   time.Duration
	block   bool
	gets    int
	puts    int
	aborted chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string][]byte), aborted: make(chan struct{}, 1)}
}

func (s *memoryStore) Kind() string { return "memory" }

func (s *memoryStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	value, ok := s.values[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *memoryStore) Put(ctx context.Context, hash string, value []byte) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.values[hash] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) wait(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		s.aborted <- struct{}{}
		return ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *memoryStore) has(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[hash]
	return ok
}

func (s *memoryStore) value(hash string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[hash]
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
