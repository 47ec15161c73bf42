package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memKV is an in-memory KV that can be forced to fail.
type memKV struct {
	mu   sync.Mutex
	m    map[string][]byte
	fail error
}

func newMemKV() *memKV {
	return &memKV{m: make(map[string][]byte)}
}

func (s *memKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	val, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return val, nil
}

func (s *memKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.m[key] = value
	return nil
}

func (s *memKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.m, key)
	return nil
}

func (s *memKV) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func newFailover(t *testing.T) (*FailoverKV, *memKV, *memKV) {
	t.Helper()
	primary := newMemKV()
	fallback := newMemKV()
	logger := zerolog.New(io.Discard)
	return NewFailoverKV(primary, fallback, &logger), primary, fallback
}

func TestFailoverKV(t *testing.T) {
	ctx := context.Background()

	t.Run("primary serves when healthy", func(t *testing.T) {
		fo, primary, fallback := newFailover(t)

		require.NoError(t, fo.Set(ctx, "k", []byte("v")))
		val, err := fo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
		assert.False(t, fo.isDown.Load())

		// Writes keep the fallback warm.
		got, err := fallback.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
		_ = primary
	})

	t.Run("a miss is not a failure", func(t *testing.T) {
		fo, _, _ := newFailover(t)
		_, err := fo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, fo.isDown.Load())
	})

	t.Run("primary failure falls back", func(t *testing.T) {
		fo, primary, fallback := newFailover(t)
		require.NoError(t, fallback.Set(ctx, "k", []byte("stale")))
		primary.setFail(errors.New("connection refused"))

		val, err := fo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("stale"), val)
		assert.True(t, fo.isDown.Load())

		// While down, the primary is not probed again before the interval.
		require.NoError(t, fo.Set(ctx, "k2", []byte("v2")))
		val, err = fo.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), val)
	})

	t.Run("primary recovers after the interval", func(t *testing.T) {
		fo, primary, _ := newFailover(t)
		primary.setFail(errors.New("connection refused"))
		_, _ = fo.Get(ctx, "k")
		require.True(t, fo.isDown.Load())

		primary.setFail(nil)
		require.NoError(t, primary.Set(ctx, "k", []byte("fresh")))
		fo.mu.Lock()
		fo.lastCheck = time.Now().Add(-2 * time.Minute)
		fo.mu.Unlock()

		val, err := fo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("fresh"), val)
		assert.False(t, fo.isDown.Load())
	})
}
