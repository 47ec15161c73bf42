package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverKV serves from a primary store and falls back to a secondary when
// the primary errors. After a failure the primary is considered down and is
// re-probed at most once per recoveryInterval on the next call.
//
// A miss (ErrNotFound) is a valid answer, not a failure, and does not trip
// the failover.
type FailoverKV struct {
	primary  KV
	fallback KV
	logger   *zerolog.Logger

	isDown           atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	recoveryInterval time.Duration
}

// NewFailoverKV builds a failover store over primary and fallback.
func NewFailoverKV(primary, fallback KV, logger *zerolog.Logger) *FailoverKV {
	return &FailoverKV{
		primary:          primary,
		fallback:         fallback,
		logger:           logger,
		recoveryInterval: time.Minute,
	}
}

// usePrimary reports whether the next call should go to the primary,
// flipping the down flag when the recovery interval has elapsed.
func (f *FailoverKV) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < f.recoveryInterval {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverKV) markDown(op string, err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary store down, using fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverKV) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("primary store recovered")
	}
}

func (f *FailoverKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.usePrimary() {
		val, err := f.primary.Get(ctx, key)
		if err == nil || err == ErrNotFound {
			f.markUp()
			return val, err
		}
		f.markDown("get", err)
	}
	return f.fallback.Get(ctx, key)
}

func (f *FailoverKV) Set(ctx context.Context, key string, value []byte) error {
	if f.usePrimary() {
		if err := f.primary.Set(ctx, key, value); err != nil {
			f.markDown("set", err)
		} else {
			f.markUp()
			// Keep the fallback warm so a later failover still sees the value.
			_ = f.fallback.Set(ctx, key, value)
			return nil
		}
	}
	return f.fallback.Set(ctx, key, value)
}

func (f *FailoverKV) Delete(ctx context.Context, key string) error {
	var primaryErr error
	if f.usePrimary() {
		if primaryErr = f.primary.Delete(ctx, key); primaryErr != nil {
			f.markDown("delete", primaryErr)
		} else {
			f.markUp()
		}
	}
	if err := f.fallback.Delete(ctx, key); err != nil {
		return err
	}
	return primaryErr
}
