package cache

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// Tiered 在一组次级后端（Router）前放置一个快速的主后端。
// GET 先查主后端，未命中再扇出到次级，次级命中后回写主后端（尽力而为）。
type Tiered struct {
	primary   Backend
	secondary *Router
	logger    *logrus.Logger
}

// NewTiered 构造两级缓存，主后端名称不能与次级后端重复。
func NewTiered(primary Backend, secondary *Router, logger *logrus.Logger) (*Tiered, error) {
	if primary.Name == "" || primary.Store == nil {
		return nil, errors.New("primary backend required")
	}
	if secondary == nil {
		return nil, errors.New("secondary router required")
	}
	for _, b := range secondary.backends {
		if b.Name == primary.Name {
			return nil, errors.New("primary backend " + primary.Name + " is also a secondary backend")
		}
	}
	if logger == nil {
		logger = secondary.logger
	}
	return &Tiered{primary: primary, secondary: secondary, logger: logger}, nil
}

// Backends 返回主后端在前、次级后端在后的集合。
func (t *Tiered) Backends() CacheSet {
	return append(CacheSet{t.primary}, t.secondary.Backends()...)
}

// Primary 返回主后端。
func (t *Tiered) Primary() Backend {
	return t.primary
}

func (t *Tiered) Get(ctx context.Context, hash string) (*GetResult, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	result := &GetResult{}
	fields := backendFields("get", t.primary, hash)
	value, err := t.primaryCall(ctx, func(opCtx context.Context) ([]byte, error) {
		return t.primary.Store.Get(opCtx, hash)
	})
	switch {
	case err == nil:
		t.logger.WithFields(fields).Debug("cache_hit")
		result.Value = value
		result.Found = true
		result.Backend = t.primary.Name
		result.Outcomes = []Outcome{{Backend: t.primary.Name, Status: StatusHit}}
		return result, nil
	case errors.Is(err, ErrNotFound):
		t.logger.WithFields(fields).Debug("cache_miss")
		result.Outcomes = []Outcome{{Backend: t.primary.Name, Status: StatusMiss}}
	default:
		t.logger.WithFields(fields).WithError(err).Warn("cache_get_failed")
		result.Outcomes = []Outcome{{
			Backend: t.primary.Name,
			Status:  StatusError,
			Err:     &BackendError{Backend: t.primary.Name, Op: "get", Err: err},
		}}
	}

	secondary, err := t.secondary.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	result.Outcomes = append(result.Outcomes, secondary.Outcomes...)
	if !secondary.Found {
		return result, nil
	}

	result.Value = secondary.Value
	result.Found = true
	result.Backend = secondary.Backend

	// 回写失败只记录日志，不影响本次 GET 的结果。
	_, err = t.primaryCall(ctx, func(opCtx context.Context) ([]byte, error) {
		return nil, t.primary.Store.Put(opCtx, hash, secondary.Value)
	})
	promoteFields := backendFields("promote", t.primary, hash)
	promoteFields["source"] = secondary.Backend
	if err != nil {
		t.logger.WithFields(promoteFields).WithError(err).Warn("cache_promote_failed")
	} else {
		t.logger.WithFields(promoteFields).Debug("cache_promoted")
		result.Promoted = true
	}
	return result, nil
}

// Put 同时写入主后端与次级扇出，两侧都失败才视为失败。
// 没有次级后端时，结果完全取决于主后端。
func (t *Tiered) Put(ctx context.Context, hash string, value []byte) (*PutResult, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	var (
		primaryErr   error
		secondary    *PutResult
		secondaryErr error
		wg           conc.WaitGroup
	)
	wg.Go(func() {
		_, err := t.primaryCall(ctx, func(opCtx context.Context) ([]byte, error) {
			return nil, t.primary.Store.Put(opCtx, hash, value)
		})
		if err != nil {
			t.logger.WithFields(backendFields("put", t.primary, hash)).WithError(err).Warn("cache_put_failed")
			primaryErr = &BackendError{Backend: t.primary.Name, Op: "put", Err: err}
		}
	})
	wg.Go(func() {
		secondary, secondaryErr = t.secondary.Put(ctx, hash, value)
	})
	wg.Wait()

	result := &PutResult{}
	if primaryErr != nil {
		result.Outcomes = append(result.Outcomes, Outcome{Backend: t.primary.Name, Status: StatusError, Err: primaryErr})
	} else {
		result.Outcomes = append(result.Outcomes, Outcome{Backend: t.primary.Name, Status: StatusStored})
	}
	if secondary != nil {
		result.Outcomes = append(result.Outcomes, secondary.Outcomes...)
	}

	secondaryAttempted := len(t.secondary.backends) > 0
	switch {
	case primaryErr == nil && secondaryErr == nil:
		if secondary != nil && secondary.Warning != nil {
			result.Warning = secondary.Warning
		}
		return result, nil
	case primaryErr != nil && (secondaryErr != nil || !secondaryAttempted):
		errs := []error{primaryErr}
		if secondaryErr != nil {
			errs = append(errs, flattenErrors(secondaryErr)...)
		}
		return result, newAggregateError(errs)
	case primaryErr != nil:
		var warning error
		if secondary != nil {
			warning = secondary.Warning
		}
		result.Warning = multierr.Combine(primaryErr, warning)
		return result, nil
	default:
		result.Warning = secondaryErr
		return result, nil
	}
}

func (t *Tiered) primaryCall(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error) {
	return callWithTimeout(ctx, t.secondary.timeout, op)
}

func flattenErrors(err error) []error {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Errors()
	}
	return []error{err}
}
