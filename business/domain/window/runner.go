package window

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

type Submitter interface {
	Submit(name string, task Task) error
}

// Runner schedules at most one computation per key on a pool and caches
// its result. A failed computation leaves the key unscheduled.
type Runner[K comparable, V any] struct {
	cache *Cache[K, V]
	pool  Submitter
}

func NewRunner[K comparable, V any](pool Submitter) *Runner[K, V] {
	return &Runner[K, V]{cache: NewCache[K, V](), pool: pool}
}

// Schedule returns true if a new computation for key was submitted.
func (r *Runner[K, V]) Schedule(key K, compute func(ctx context.Context) (V, error)) (bool, error) {
	if !r.cache.TrySchedule(key) {
		return false, nil
	}

	err := r.pool.Submit(fmt.Sprint(key), func(ctx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = errors.Errorf("computation panicked: %v", rec)
			}
			if err != nil {
				r.cache.Fail(key)
			}
		}()

		value, err := compute(ctx)
		if err != nil {
			return errors.Wrapf(err, "computing [%v]", key)
		}
		r.cache.Complete(key, value)
		return nil
	})
	if err != nil {
		r.cache.Fail(key)
		return false, errors.Wrapf(err, "submitting [%v]", key)
	}
	return true, nil
}

func (r *Runner[K, V]) Get(key K) (V, State) {
	return r.cache.Get(key)
}

// Restore marks key completed with a result loaded from storage.
func (r *Runner[K, V]) Restore(key K, value V) {
	r.cache.Complete(key, value)
}

func (r *Runner[K, V]) Completed() map[K]V {
	return r.cache.Completed()
}
