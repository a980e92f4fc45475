package cache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Store 是单个后端的读写原语。Get 未命中时返回 ErrNotFound，其它错误均视为硬错误。
type Store interface {
	// Get 返回 hash 对应的完整值。
	Get(ctx context.Context, hash string) ([]byte, error)

	// Put 以整体写入的方式保存 value，覆盖同 hash 的旧值。
	Put(ctx context.Context, hash string, value []byte) error

	// Kind 返回后端类型标识（fs / s3），用于日志与诊断。
	Kind() string
}

// Backend 为 Store 绑定一个唯一名称，名称只用于日志与错误信息。
type Backend struct {
	Name  string
	Store Store
}

// CacheSet 是路由器扇出的后端集合，顺序不影响正确性。
type CacheSet []Backend

// Names 返回集合内所有后端名称。
func (s CacheSet) Names() []string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return names
}

// Cache 是调用方（CLI / HTTP）看到的统一入口，Router 与 Tiered 均实现该接口。
// Put 失败时同样返回非 nil 的 PutResult，Outcomes 记录每个后端的结果。
type Cache interface {
	Get(ctx context.Context, hash string) (*GetResult, error)
	Put(ctx context.Context, hash string, value []byte) (*PutResult, error)
	Backends() CacheSet
}

// Status 描述单个后端在一次调用中的结果。
type Status string

const (
	StatusHit    Status = "hit"
	StatusMiss   Status = "miss"
	StatusStored Status = "stored"
	StatusError  Status = "error"
)

// Outcome 记录单个后端的结果，使"全部未命中"与"全部出错"可以区分。
type Outcome struct {
	Backend string
	Status  Status
	Err     error
}

// GetResult 是一次 GET 扇出的结果。Found 为 false 时 Value 为空。
type GetResult struct {
	Value    []byte
	Found    bool
	Backend  string
	Promoted bool
	Outcomes []Outcome
}

// PutResult 是一次成功 PUT 的结果；部分后端失败时 Warning 携带聚合后的错误。
type PutResult struct {
	Outcomes []Outcome
	Warning  error
}

var (
	// ErrNotFound 表示后端中不存在该 hash，属于正常未命中。
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidHash 表示传入的 key 不是 64 位小写十六进制字符串。
	ErrInvalidHash = errors.New("invalid hash")
)

// BackendError 携带后端名称与操作，所有后端硬错误在路由层都会被包装成它。
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// AggregateError 表示 PUT 未满足成功策略，消息中包含每个失败后端的名称与原因，以 "; " 连接。
type AggregateError struct {
	err error
}

func newAggregateError(errs []error) *AggregateError {
	return &AggregateError{err: multierr.Combine(errs...)}
}

func (e *AggregateError) Error() string {
	return e.err.Error()
}

// Errors 返回逐个后端的 BackendError。
func (e *AggregateError) Errors() []error {
	return multierr.Errors(e.err)
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors()
}
