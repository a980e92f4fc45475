package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// PutPolicy 决定 PUT 扇出在部分后端失败时是否视为成功。
type PutPolicy string

const (
	// PutPolicyAny 只要有一个后端写入成功即视为成功，其余失败作为 warning 返回。
	PutPolicyAny PutPolicy = "any"
	// PutPolicyAll 任一后端失败即视为失败。
	PutPolicyAll PutPolicy = "all"
)

// ParsePutPolicy 将配置字符串解析为 PutPolicy，空字符串回退到 any。
func ParsePutPolicy(raw string) (PutPolicy, error) {
	switch PutPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PutPolicyAny:
		return PutPolicyAny, nil
	case PutPolicyAll:
		return PutPolicyAll, nil
	default:
		return "", fmt.Errorf("unsupported put policy: %s", raw)
	}
}

// RouterOptions 控制路由器的日志、写入策略与单后端超时。
type RouterOptions struct {
	Logger    *logrus.Logger
	PutPolicy PutPolicy
	// OperationTimeout 为每个后端调用设置超时，0 表示不限制。
	OperationTimeout time.Duration
}

// Router 将一次 GET/PUT 并发扇出到 CacheSet 中的所有后端。
type Router struct {
	backends CacheSet
	logger   *logrus.Logger
	policy   PutPolicy
	timeout  time.Duration
}

// NewRouter 校验后端名称唯一后构造路由器，空集合是合法的。
func NewRouter(backends CacheSet, opts RouterOptions) (*Router, error) {
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if b.Name == "" {
			return nil, errors.New("backend name required")
		}
		if b.Store == nil {
			return nil, fmt.Errorf("backend %s: store is nil", b.Name)
		}
		if _, exists := seen[b.Name]; exists {
			return nil, fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		seen[b.Name] = struct{}{}
	}

	policy := opts.PutPolicy
	if policy == "" {
		policy = PutPolicyAny
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Router{
		backends: append(CacheSet(nil), backends...),
		logger:   logger,
		policy:   policy,
		timeout:  opts.OperationTimeout,
	}, nil
}

// Backends 返回路由器扇出的后端集合副本。
func (r *Router) Backends() CacheSet {
	return append(CacheSet(nil), r.backends...)
}

// Get 并发查询所有后端，第一个命中者胜出并立即返回，其余调用通过 context 取消。
// 未命中与后端错误只记录日志，不会中断等待；全部未命中/出错时返回 Found=false。
func (r *Router) Get(ctx context.Context, hash string) (*GetResult, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	result := &GetResult{}
	if len(r.backends) == 0 {
		return result, nil
	}

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type reply struct {
		backend Backend
		value   []byte
		err     error
	}
	// 缓冲区容纳全部回复，落选的 goroutine 不会阻塞。
	replies := make(chan reply, len(r.backends))
	for _, b := range r.backends {
		b := b
		go func() {
			value, err := r.call(fanCtx, func(opCtx context.Context) ([]byte, error) {
				return b.Store.Get(opCtx, hash)
			})
			replies <- reply{backend: b, value: value, err: err}
		}()
	}

	for range r.backends {
		var rep reply
		select {
		case rep = <-replies:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		fields := backendFields("get", rep.backend, hash)
		switch {
		case rep.err == nil:
			r.logger.WithFields(fields).Debug("cache_hit")
			result.Value = rep.value
			result.Found = true
			result.Backend = rep.backend.Name
			result.Outcomes = append(result.Outcomes, Outcome{Backend: rep.backend.Name, Status: StatusHit})
			return result, nil
		case errors.Is(rep.err, ErrNotFound):
			r.logger.WithFields(fields).Debug("cache_miss")
			result.Outcomes = append(result.Outcomes, Outcome{Backend: rep.backend.Name, Status: StatusMiss})
		default:
			bErr := &BackendError{Backend: rep.backend.Name, Op: "get", Err: rep.err}
			r.logger.WithFields(fields).WithError(rep.err).Warn("cache_get_failed")
			result.Outcomes = append(result.Outcomes, Outcome{Backend: rep.backend.Name, Status: StatusError, Err: bErr})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Put 并发写入所有后端并等待全部完成，不做回滚。是否成功由 PutPolicy 决定，
// 失败时返回 *AggregateError，部分失败但整体成功时错误放入 PutResult.Warning。
func (r *Router) Put(ctx context.Context, hash string, value []byte) (*PutResult, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	result := &PutResult{}
	if len(r.backends) == 0 {
		return result, nil
	}

	p := pool.NewWithResults[Outcome]()
	for _, b := range r.backends {
		b := b
		p.Go(func() Outcome {
			_, err := r.call(ctx, func(opCtx context.Context) ([]byte, error) {
				return nil, b.Store.Put(opCtx, hash, value)
			})
			fields := backendFields("put", b, hash)
			if err != nil {
				r.logger.WithFields(fields).WithError(err).Warn("cache_put_failed")
				return Outcome{
					Backend: b.Name,
					Status:  StatusError,
					Err:     &BackendError{Backend: b.Name, Op: "put", Err: err},
				}
			}
			r.logger.WithFields(fields).Debug("cache_stored")
			return Outcome{Backend: b.Name, Status: StatusStored}
		})
	}

	outcomes := p.Wait()
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Backend < outcomes[j].Backend
	})
	result.Outcomes = outcomes

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	if len(errs) == 0 {
		return result, nil
	}
	// 失败时仍返回结果，调用方可以看到哪些后端已经写入成功。
	if r.policy == PutPolicyAll || len(errs) == len(outcomes) {
		return result, newAggregateError(errs)
	}
	result.Warning = multierr.Combine(errs...)
	return result, nil
}

// call 在可选超时内执行单个后端操作。
func (r *Router) call(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error) {
	return callWithTimeout(ctx, r.timeout, op)
}

func callWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) ([]byte, error)) ([]byte, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(opCtx)
}

func backendFields(action string, b Backend, hash string) logrus.Fields {
	return logrus.Fields{
		"action":  action,
		"backend": b.Name,
		"kind":    b.Store.Kind(),
		"hash":    hash,
	}
}
